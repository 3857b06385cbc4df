package api_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/mekobeko2222/bubbles-ecommerce-app/internal/notify"
	"github.com/mekobeko2222/bubbles-ecommerce-app/pkg/dispatch/mocks"
	"github.com/mekobeko2222/bubbles-ecommerce-app/pkg/notification"
)

var fixedNow = time.Date(2026, 7, 4, 10, 0, 0, 0, time.UTC)

type deps struct {
	dispatcher *mocks.Dispatcher
	tokens     *mocks.AdminTokenStore
	users      *mocks.UserStore
	queue      *mocks.QueueStore
	reconciler *mocks.Reconciler
	service    *notify.Service
}

func newDeps() *deps {
	d := &deps{
		dispatcher: new(mocks.Dispatcher),
		tokens:     new(mocks.AdminTokenStore),
		users:      new(mocks.UserStore),
		queue:      new(mocks.QueueStore),
		reconciler: new(mocks.Reconciler),
	}
	d.service = notify.NewService(d.dispatcher, d.tokens, d.users, d.queue, d.reconciler, newTestLogger(),
		notify.WithClock(func() time.Time { return fixedNow }))
	return d
}

// asAdmin marks userID as an admin in the user store mock.
func (d *deps) asAdmin(userID string) {
	d.users.On("Get", mock.Anything, userID).Return(&notification.User{ID: userID, IsAdmin: true}, nil)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Helper to inject UserID into context (simulating Auth Middleware)
func withUser(req *http.Request, userID string) *http.Request {
	ctx := middleware.ContextWithUserID(req.Context(), userID)
	return req.WithContext(ctx)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
