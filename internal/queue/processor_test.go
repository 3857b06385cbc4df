package queue_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mekobeko2222/bubbles-ecommerce-app/internal/queue"
	"github.com/mekobeko2222/bubbles-ecommerce-app/pkg/dispatch/mocks"
	"github.com/mekobeko2222/bubbles-ecommerce-app/pkg/notification"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) SendToToken(ctx context.Context, token string, msg notification.Message) (*notification.DeliveryResult, error) {
	args := m.Called(ctx, token, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notification.DeliveryResult), args.Error(1)
}

func (m *MockSender) BroadcastToAdmins(ctx context.Context, msg notification.Message) (*notification.DeliveryResult, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notification.DeliveryResult), args.Error(1)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProcess(t *testing.T) {
	ctx := context.Background()
	ok := &notification.DeliveryResult{SuccessCount: 1}

	t.Run("Processed item: no send, no write", func(t *testing.T) {
		store := new(mocks.QueueStore)
		sender := new(MockSender)
		p := queue.NewProcessor(store, sender, newTestLogger())

		store.On("Claim", ctx, "q1").Return(&notification.QueueItem{ID: "q1", Processed: true}, false, nil)

		require.NoError(t, p.Process(ctx, "q1"))

		store.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
		sender.AssertNotCalled(t, "SendToToken", mock.Anything, mock.Anything, mock.Anything)
		sender.AssertNotCalled(t, "BroadcastToAdmins", mock.Anything, mock.Anything)
	})

	t.Run("Individual routes to the payload token", func(t *testing.T) {
		store := new(mocks.QueueStore)
		sender := new(MockSender)
		p := queue.NewProcessor(store, sender, newTestLogger())

		item := &notification.QueueItem{
			ID:         "q2",
			TargetType: notification.QueueTargetIndividual,
			Payload: notification.QueuePayload{
				Token: "dev-1", Title: "Hi", Body: "There",
				Data: map[string]string{"type": "order"},
			},
		}
		store.On("Claim", ctx, "q2").Return(item, true, nil)
		sender.On("SendToToken", ctx, "dev-1", mock.MatchedBy(func(m notification.Message) bool {
			return m.Content.Title == "Hi" && m.Channel == notification.ChannelOrder
		})).Return(ok, nil)
		store.On("Complete", ctx, "q2", nil).Return(nil)

		require.NoError(t, p.Process(ctx, "q2"))
		sender.AssertExpectations(t)
		store.AssertExpectations(t)
	})

	t.Run("All admins routes to broadcast on the admin channel", func(t *testing.T) {
		store := new(mocks.QueueStore)
		sender := new(MockSender)
		p := queue.NewProcessor(store, sender, newTestLogger())

		item := &notification.QueueItem{
			ID:         "q3",
			TargetType: notification.QueueTargetAllAdmins,
			Payload:    notification.QueuePayload{Title: "All", Body: "Hands", Data: map[string]string{"type": "admin"}},
		}
		store.On("Claim", ctx, "q3").Return(item, true, nil)
		sender.On("BroadcastToAdmins", ctx, mock.MatchedBy(func(m notification.Message) bool {
			return m.Channel == notification.ChannelAdmin
		})).Return(ok, nil)
		store.On("Complete", ctx, "q3", nil).Return(nil)

		require.NoError(t, p.Process(ctx, "q3"))
		sender.AssertExpectations(t)
	})

	t.Run("Unknown target type is recorded as a failure", func(t *testing.T) {
		store := new(mocks.QueueStore)
		sender := new(MockSender)
		p := queue.NewProcessor(store, sender, newTestLogger())

		store.On("Claim", ctx, "q4").Return(&notification.QueueItem{ID: "q4", TargetType: "carrier_pigeon"}, true, nil)
		store.On("Complete", ctx, "q4", mock.MatchedBy(func(err error) bool {
			return errors.Is(err, queue.ErrUnknownTarget)
		})).Return(nil)

		require.NoError(t, p.Process(ctx, "q4"))
		store.AssertExpectations(t)
	})

	t.Run("Dispatch failure is recorded, not returned", func(t *testing.T) {
		store := new(mocks.QueueStore)
		sender := new(MockSender)
		p := queue.NewProcessor(store, sender, newTestLogger())

		sendErr := errors.New("fcm unavailable")
		store.On("Claim", ctx, "q5").Return(&notification.QueueItem{
			ID: "q5", TargetType: notification.QueueTargetIndividual,
			Payload: notification.QueuePayload{Token: "dev"},
		}, true, nil)
		sender.On("SendToToken", ctx, "dev", mock.Anything).Return(nil, sendErr)
		store.On("Complete", ctx, "q5", sendErr).Return(nil)

		require.NoError(t, p.Process(ctx, "q5"))
		store.AssertExpectations(t)
	})

	t.Run("Missing item is ignored", func(t *testing.T) {
		store := new(mocks.QueueStore)
		p := queue.NewProcessor(store, new(MockSender), newTestLogger())
		store.On("Claim", ctx, "gone").Return(nil, false, notification.ErrNotFound)

		require.NoError(t, p.Process(ctx, "gone"))
	})

	t.Run("Complete failure is returned", func(t *testing.T) {
		store := new(mocks.QueueStore)
		sender := new(MockSender)
		p := queue.NewProcessor(store, sender, newTestLogger())

		store.On("Claim", ctx, "q6").Return(&notification.QueueItem{ID: "q6", TargetType: notification.QueueTargetAllAdmins}, true, nil)
		sender.On("BroadcastToAdmins", ctx, mock.Anything).Return(ok, nil)
		store.On("Complete", ctx, "q6", nil).Return(errors.New("write failed"))

		require.Error(t, p.Process(ctx, "q6"))
	})
}
