package dispatch

import (
	"context"
	"time"

	"github.com/mekobeko2222/bubbles-ecommerce-app/pkg/notification"
)

// Dispatcher delivers a formatted message to its target through a push provider.
type Dispatcher interface {
	// Send delivers msg to msg.Target. Unregistered tokens are reported in the
	// result and never cause an error.
	Send(ctx context.Context, msg notification.Message) (*notification.DeliveryResult, error)
}

// AdminTokenStore manages the admin_tokens collection.
type AdminTokenStore interface {
	// Register upserts the owner's token and marks it active.
	Register(ctx context.Context, ownerID, token string) error
	// Deactivate marks the owner's token inactive. Missing records are a no-op.
	Deactivate(ctx context.Context, ownerID string) error
	// Get returns notification.ErrNotFound when the owner has no record.
	Get(ctx context.Context, ownerID string) (*notification.TokenRecord, error)
	// ActiveTokens returns every non-empty token with isActive=true.
	ActiveTokens(ctx context.Context) ([]string, error)
	CountActive(ctx context.Context) (int, error)
	// DeleteUpdatedBefore hard-deletes records last updated before cutoff.
	DeleteUpdatedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// UserStore reads user profiles.
type UserStore interface {
	// Get returns notification.ErrNotFound when the user does not exist.
	Get(ctx context.Context, userID string) (*notification.User, error)
}

// Reconciler removes tokens the provider reported as permanently invalid.
type Reconciler interface {
	Reconcile(ctx context.Context, tokens []string) error
}

// QueueStore manages the notification_queue collection.
type QueueStore interface {
	// Claim atomically moves a pending item to processing. It returns
	// claimed=false, without writing, when the item was already processed
	// or claimed.
	Claim(ctx context.Context, id string) (item *notification.QueueItem, claimed bool, err error)
	// Complete marks the item processed, and failed when dispatchErr is set.
	Complete(ctx context.Context, id string, dispatchErr error) error
	CountPending(ctx context.Context) (int, error)
	CountProcessedSince(ctx context.Context, since time.Time) (int, error)
	// DeleteProcessedBefore deletes processed items created before cutoff.
	DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int, error)
}
