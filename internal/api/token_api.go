package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mekobeko2222/bubbles-ecommerce-app/pkg/dispatch"
)

// TokenAPI lets an admin device register and remove its push token.
type TokenAPI struct {
	Store    dispatch.AdminTokenStore
	Notifier Notifier
	Logger   *slog.Logger
}

func NewTokenAPI(store dispatch.AdminTokenStore, notifier Notifier, logger *slog.Logger) *TokenAPI {
	return &TokenAPI{
		Store:    store,
		Notifier: notifier,
		Logger:   logger.With("component", "TokenAPI"),
	}
}

type RegisterAdminTokenRequest struct {
	Token string `json:"token"`
}

type callableResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (api *TokenAPI) RegisterAdminToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		writeError(w, api.Logger, errNotAuthenticated)
		return
	}

	var req RegisterAdminTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, api.Logger, status.Error(codes.InvalidArgument, "invalid json"))
		return
	}
	if req.Token == "" {
		writeError(w, api.Logger, status.Error(codes.InvalidArgument, "Token is required."))
		return
	}

	if err := requireAdmin(ctx, api.Notifier, userID, "Only admins can update admin tokens."); err != nil {
		writeError(w, api.Logger, err)
		return
	}

	if err := api.Store.Register(ctx, userID, req.Token); err != nil {
		writeError(w, api.Logger, err)
		return
	}
	api.Logger.Info("Admin token updated", "user", userID)

	writeJSON(w, http.StatusOK, callableResponse{Success: true, Message: "Admin token updated successfully"})
}

// RemoveAdminToken deactivates the caller's token. Callers without a token
// still get a success.
func (api *TokenAPI) RemoveAdminToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		writeError(w, api.Logger, errNotAuthenticated)
		return
	}

	if err := api.Store.Deactivate(ctx, userID); err != nil {
		writeError(w, api.Logger, err)
		return
	}
	api.Logger.Info("Admin token deactivated", "user", userID)

	writeJSON(w, http.StatusOK, callableResponse{Success: true, Message: "Admin token removed successfully"})
}

var errNotAuthenticated = status.Error(codes.Unauthenticated, "The function must be called while authenticated.")

// requireAdmin fails with PermissionDenied unless userID is an admin.
func requireAdmin(ctx context.Context, notifier Notifier, userID, denied string) error {
	isAdmin, err := notifier.IsAdmin(ctx, userID)
	if err != nil {
		return fmt.Errorf("admin check failed: %w", err)
	}
	if !isAdmin {
		return status.Error(codes.PermissionDenied, denied)
	}
	return nil
}
