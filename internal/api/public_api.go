package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/mekobeko2222/bubbles-ecommerce-app/internal/format"
	"github.com/mekobeko2222/bubbles-ecommerce-app/internal/notify"
	"github.com/mekobeko2222/bubbles-ecommerce-app/pkg/notification"
)

const maxBodyBytes = 1 << 20

// PublicAPI serves the unauthenticated notify endpoints called by the app backend.
type PublicAPI struct {
	Notifier Notifier
	Logger   *slog.Logger
}

func NewPublicAPI(notifier Notifier, logger *slog.Logger) *PublicAPI {
	return &PublicAPI{
		Notifier: notifier,
		Logger:   logger.With("component", "PublicAPI"),
	}
}

type tokenResult struct {
	Token     string `json:"token"`
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

type adminNotifyResponse struct {
	Success      bool          `json:"success"`
	Message      string        `json:"message"`
	SuccessCount int           `json:"successCount"`
	FailureCount int           `json:"failureCount"`
	AdminCount   int           `json:"adminCount"`
	Results      []tokenResult `json:"results"`
}

type failureResponse struct {
	Success         bool        `json:"success"`
	Error           string      `json:"error"`
	Details         string      `json:"details,omitempty"`
	Received        interface{} `json:"received,omitempty"`
	ExpectedFormats []string    `json:"expectedFormats,omitempty"`
}

// NotifyAdmins accepts any of the admin payload shapes and broadcasts to every
// active admin. Partial failures are reported per token with a 200.
func (api *PublicAPI) NotifyAdmins(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, failureResponse{Error: "Invalid request format", Details: err.Error()})
		return
	}

	req, err := format.ParseAdminRequest(body)
	if err != nil {
		api.Logger.Warn("NotifyAdmins: unrecognised payload", "err", err)
		writeJSON(w, http.StatusBadRequest, failureResponse{
			Error:           "Invalid request format",
			Details:         err.Error(),
			Received:        echo(body),
			ExpectedFormats: format.SupportedShapes,
		})
		return
	}

	msg := req.Message(api.Notifier.Now())
	api.Logger.Info("NotifyAdmins: processing", "shape", req.Shape(), "title", msg.Content.Title)

	result, err := api.Notifier.BroadcastToAdmins(r.Context(), msg)
	if err != nil {
		api.Logger.Error("NotifyAdmins: broadcast failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, failureResponse{Error: "Failed to send notifications", Details: err.Error()})
		return
	}

	resp := adminNotifyResponse{
		Success:      true,
		Message:      "Admin notifications processed",
		SuccessCount: result.SuccessCount,
		FailureCount: result.FailureCount,
		AdminCount:   len(result.Outcomes),
		Results:      make([]tokenResult, 0, len(result.Outcomes)),
	}
	if resp.AdminCount == 0 {
		resp.Message = "No active admin tokens found"
	}
	for _, o := range result.Outcomes {
		resp.Results = append(resp.Results, tokenResult{
			Token:     truncate(o.Token),
			Success:   o.Success,
			MessageID: o.MessageID,
			Error:     o.Error,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type customerNotifyRequest struct {
	Title  string                 `json:"title"`
	Body   string                 `json:"body"`
	Data   map[string]interface{} `json:"data"`
	UserID string                 `json:"userId"`
}

// NotifyCustomer sends to one user's device when userId is set, else to the
// customer topic.
func (api *PublicAPI) NotifyCustomer(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req customerNotifyRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, failureResponse{Error: "invalid json", Details: err.Error()})
		return
	}
	if req.Title == "" || req.Body == "" {
		writeJSON(w, http.StatusBadRequest, failureResponse{Error: "Missing required fields: title and body"})
		return
	}

	now := api.Notifier.Now()
	msg := format.Customer(req.Title, req.Body, format.StringMap(req.Data), now)

	var (
		result *notification.DeliveryResult
		err    error
		sentTo = "all_customers"
	)
	if req.UserID != "" {
		sentTo = "specific_user"
		result, err = api.Notifier.SendToUser(r.Context(), req.UserID, msg)
	} else {
		result, err = api.Notifier.SendToTopic(r.Context(), "", msg)
	}
	if err != nil {
		code := httpStatus(err)
		if code == http.StatusInternalServerError {
			api.Logger.Error("NotifyCustomer: send failed", "err", err)
			writeJSON(w, code, failureResponse{Error: "Failed to send customer notification", Details: err.Error()})
			return
		}
		writeJSON(w, code, failureResponse{Error: message(err)})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"messageId": firstMessageID(result),
		"message":   "Customer notification sent successfully",
		"sentTo":    sentTo,
		"timestamp": now.UTC().Format(timeLayout),
	})
}

type orderStatusRequest struct {
	OrderID   string `json:"orderId"`
	UserID    string `json:"userId"`
	NewStatus string `json:"newStatus"`
	OldStatus string `json:"oldStatus"`
}

// NotifyOrderStatus is the HTTP twin of the order-updated trigger.
func (api *PublicAPI) NotifyOrderStatus(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req orderStatusRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, failureResponse{Error: "invalid json", Details: err.Error()})
		return
	}
	if req.OrderID == "" {
		writeJSON(w, http.StatusBadRequest, failureResponse{Error: "Missing required field: orderId"})
		return
	}

	change := notification.StatusChange{
		OrderID: req.OrderID,
		Before:  notification.Order{ID: req.OrderID, UserID: req.UserID, OrderStatus: req.OldStatus},
		After:   notification.Order{ID: req.OrderID, UserID: req.UserID, OrderStatus: req.NewStatus},
	}
	outcome, result, err := api.Notifier.NotifyCustomerOfStatus(r.Context(), change)
	if err != nil {
		api.Logger.Error("NotifyOrderStatus: send failed", "orderId", req.OrderID, "err", err)
		writeJSON(w, http.StatusInternalServerError, failureResponse{Error: "Failed to send customer notification", Details: err.Error()})
		return
	}

	switch outcome {
	case notify.StatusNoUser:
		writeJSON(w, http.StatusNotFound, failureResponse{Error: "User not found"})
	case notify.StatusNoToken:
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "User does not have FCM token"})
	case notify.StatusUnchanged, notify.StatusIgnored:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "No notification needed for status: " + req.NewStatus,
		})
	default:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":   true,
			"message":   "Customer notification sent successfully",
			"messageId": firstMessageID(result),
		})
	}
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodPost {
		return true
	}
	w.Header().Set("Allow", "POST, OPTIONS")
	writeJSON(w, http.StatusMethodNotAllowed, failureResponse{Error: "Method not allowed. Use POST."})
	return false
}

func truncate(token string) string {
	if len(token) > 20 {
		return token[:20] + "..."
	}
	return token + "..."
}

func firstMessageID(result *notification.DeliveryResult) string {
	if result == nil {
		return ""
	}
	for _, o := range result.Outcomes {
		if o.Success {
			return o.MessageID
		}
	}
	return ""
}

// echo returns the request body as decoded JSON when possible.
func echo(body []byte) interface{} {
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	if len(body) == 0 {
		return nil
	}
	return string(body)
}
