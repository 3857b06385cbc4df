package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"
)

// TokenVerifier is the subset of the Firebase Auth client we use.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// NewFirebaseAuthMiddleware verifies the bearer Firebase ID token and stores
// the caller's uid in the request context.
func NewFirebaseAuthMiddleware(verifier TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With("component", "FirebaseAuth")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			idToken, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || idToken == "" {
				response.WriteJSONError(w, http.StatusUnauthorized, "The function must be called while authenticated.")
				return
			}

			token, err := verifier.VerifyIDToken(r.Context(), idToken)
			if err != nil {
				logger.Warn("ID token rejected", "err", err)
				response.WriteJSONError(w, http.StatusUnauthorized, "invalid ID token")
				return
			}

			ctx := middleware.ContextWithUserID(r.Context(), token.UID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
