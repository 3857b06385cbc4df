package api

import (
	"context"
	"time"

	"github.com/mekobeko2222/bubbles-ecommerce-app/internal/notify"
	"github.com/mekobeko2222/bubbles-ecommerce-app/pkg/notification"
)

// Notifier is the workflow surface the handlers call; *notify.Service implements it.
type Notifier interface {
	Now() time.Time
	IsAdmin(ctx context.Context, userID string) (bool, error)
	BroadcastToAdmins(ctx context.Context, msg notification.Message) (*notification.DeliveryResult, error)
	SendToUser(ctx context.Context, userID string, msg notification.Message) (*notification.DeliveryResult, error)
	SendToAdmin(ctx context.Context, ownerID string, msg notification.Message) (*notification.DeliveryResult, error)
	SendToTopic(ctx context.Context, topic string, msg notification.Message) (*notification.DeliveryResult, error)
	NotifyCustomerOfStatus(ctx context.Context, change notification.StatusChange) (notify.StatusOutcome, *notification.DeliveryResult, error)
	Stats(ctx context.Context) (*notification.Stats, error)
}

var _ Notifier = (*notify.Service)(nil)
