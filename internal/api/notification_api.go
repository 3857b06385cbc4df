package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mekobeko2222/bubbles-ecommerce-app/internal/format"
)

// NotificationAPI serves the admin-panel operations.
type NotificationAPI struct {
	Notifier Notifier
	Logger   *slog.Logger
}

func NewNotificationAPI(notifier Notifier, logger *slog.Logger) *NotificationAPI {
	return &NotificationAPI{
		Notifier: notifier,
		Logger:   logger.With("component", "NotificationAPI"),
	}
}

type ManualRequest struct {
	Title        string `json:"title"`
	Body         string `json:"body"`
	TargetType   string `json:"targetType"`
	TargetUserID string `json:"targetUserId"`
}

func (api *NotificationAPI) SendManual(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		writeError(w, api.Logger, errNotAuthenticated)
		return
	}
	if err := requireAdmin(ctx, api.Notifier, userID, "Only admins can send manual notifications."); err != nil {
		writeError(w, api.Logger, err)
		return
	}

	var req ManualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, api.Logger, status.Error(codes.InvalidArgument, "invalid json"))
		return
	}
	if req.Title == "" || req.Body == "" {
		writeError(w, api.Logger, status.Error(codes.InvalidArgument, "Title and body are required."))
		return
	}

	msg := format.Manual(req.Title, req.Body, userID, api.Notifier.Now())

	switch {
	case req.TargetType == "all_admins":
		if _, err := api.Notifier.BroadcastToAdmins(ctx, msg); err != nil {
			writeError(w, api.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, callableResponse{Success: true, Message: "Notification sent to all admins"})
	case req.TargetType == "specific_user" && req.TargetUserID != "":
		if _, err := api.Notifier.SendToUser(ctx, req.TargetUserID, msg); err != nil {
			writeError(w, api.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, callableResponse{Success: true, Message: "Notification sent to specific user"})
	default:
		writeError(w, api.Logger, status.Error(codes.InvalidArgument, "Invalid target type or missing target user ID."))
	}
}

type TestRequest struct {
	Title      string `json:"title"`
	Body       string `json:"body"`
	TargetType string `json:"targetType"`
}

func (api *NotificationAPI) SendTest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		writeError(w, api.Logger, errNotAuthenticated)
		return
	}
	if err := requireAdmin(ctx, api.Notifier, userID, "Only admins can send test notifications."); err != nil {
		writeError(w, api.Logger, err)
		return
	}

	var req TestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, api.Logger, status.Error(codes.InvalidArgument, "invalid json"))
		return
	}

	now := api.Notifier.Now()
	switch req.TargetType {
	case "self":
		msg := format.Test(req.Title, req.Body, false, now)
		if _, err := api.Notifier.SendToAdmin(ctx, userID, msg); err != nil {
			writeError(w, api.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, callableResponse{Success: true, Message: "Test notification sent successfully"})
	case "all_admins":
		msg := format.Test(req.Title, req.Body, true, now)
		if _, err := api.Notifier.BroadcastToAdmins(ctx, msg); err != nil {
			writeError(w, api.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, callableResponse{Success: true, Message: "Test broadcast sent to all admins"})
	default:
		writeError(w, api.Logger, status.Error(codes.InvalidArgument, `Invalid target type. Use "self" or "all_admins".`))
	}
}

func (api *NotificationAPI) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		writeError(w, api.Logger, errNotAuthenticated)
		return
	}
	if err := requireAdmin(ctx, api.Notifier, userID, "Only admins can view notification statistics."); err != nil {
		writeError(w, api.Logger, err)
		return
	}

	stats, err := api.Notifier.Stats(ctx)
	if err != nil {
		writeError(w, api.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
