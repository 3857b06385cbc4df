package api_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/mekobeko2222/bubbles-ecommerce-app/internal/api"
)

type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error) {
	args := m.Called(ctx, idToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Token), args.Error(1)
}

func echoUser(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserIDFromContext(r.Context())
		assert.True(t, ok)
		_, _ = w.Write([]byte(userID))
	})
}

func TestFirebaseAuthMiddleware(t *testing.T) {
	t.Run("Valid token sets the caller", func(t *testing.T) {
		verifier := new(MockVerifier)
		verifier.On("VerifyIDToken", mock.Anything, "good").Return(&auth.Token{UID: "uid-1"}, nil)
		handler := api.NewFirebaseAuthMiddleware(verifier, newTestLogger())(echoUser(t))

		req := httptest.NewRequest("GET", "/api/v1/notifications/stats", nil)
		req.Header.Set("Authorization", "Bearer good")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "uid-1", w.Body.String())
	})

	t.Run("Missing header", func(t *testing.T) {
		verifier := new(MockVerifier)
		handler := api.NewFirebaseAuthMiddleware(verifier, newTestLogger())(echoUser(t))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/notifications/stats", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		verifier.AssertNotCalled(t, "VerifyIDToken", mock.Anything, mock.Anything)
	})

	t.Run("Rejected token", func(t *testing.T) {
		verifier := new(MockVerifier)
		verifier.On("VerifyIDToken", mock.Anything, "bad").Return(nil, errors.New("expired"))
		handler := api.NewFirebaseAuthMiddleware(verifier, newTestLogger())(echoUser(t))

		req := httptest.NewRequest("GET", "/api/v1/notifications/stats", nil)
		req.Header.Set("Authorization", "Bearer bad")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestFirebaseAuthMiddlewareIntoHandlers(t *testing.T) {
	t.Run("Verified caller can remove their token", func(t *testing.T) {
		d := newDeps()
		d.tokens.On("Deactivate", mock.Anything, "admin-1").Return(nil)
		verifier := new(MockVerifier)
		verifier.On("VerifyIDToken", mock.Anything, "valid").Return(&auth.Token{UID: "admin-1"}, nil)

		tokenAPI := api.NewTokenAPI(d.tokens, d.service, newTestLogger())
		handler := api.NewFirebaseAuthMiddleware(verifier, newTestLogger())(http.HandlerFunc(tokenAPI.RemoveAdminToken))

		req := httptest.NewRequest("POST", "/api/v1/tokens/admin/remove", nil)
		req.Header.Set("Authorization", "Bearer valid")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, true, decode(t, w)["success"])
		d.tokens.AssertExpectations(t)
	})

	t.Run("Verified admin can register a token", func(t *testing.T) {
		d := newDeps()
		d.asAdmin("admin-1")
		d.tokens.On("Register", mock.Anything, "admin-1", "fcm-token-abc").Return(nil)
		verifier := new(MockVerifier)
		verifier.On("VerifyIDToken", mock.Anything, "valid").Return(&auth.Token{UID: "admin-1"}, nil)

		tokenAPI := api.NewTokenAPI(d.tokens, d.service, newTestLogger())
		handler := api.NewFirebaseAuthMiddleware(verifier, newTestLogger())(http.HandlerFunc(tokenAPI.RegisterAdminToken))

		req := httptest.NewRequest("POST", "/api/v1/tokens/admin", bytes.NewReader([]byte(`{"token":"fcm-token-abc"}`)))
		req.Header.Set("Authorization", "Bearer valid")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
		d.tokens.AssertExpectations(t)
	})
}

func TestPublicCORS(t *testing.T) {
	called := false
	handler := api.PublicCORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	}))

	t.Run("Preflight is answered directly", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("OPTIONS", "/api/notify-admins", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")
		assert.False(t, called)
	})

	t.Run("Other methods pass through with headers", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("POST", "/api/notify-admins", nil))

		assert.Equal(t, http.StatusTeapot, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.True(t, called)
	})
}
