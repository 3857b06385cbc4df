package pipeline

import (
	"context"
	"log/slog"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"

	"github.com/mekobeko2222/bubbles-ecommerce-app/internal/notify"
	"github.com/mekobeko2222/bubbles-ecommerce-app/pkg/notification"
)

// OrderNotifier is the part of notify.Service the order triggers use.
type OrderNotifier interface {
	NotifyAdminsOfOrder(ctx context.Context, order notification.Order) (*notification.DeliveryResult, error)
	NotifyCustomerOfStatus(ctx context.Context, change notification.StatusChange) (notify.StatusOutcome, *notification.DeliveryResult, error)
}

// QueueRunner processes one notification queue item.
type QueueRunner interface {
	Process(ctx context.Context, itemID string) error
}

// NewProcessor routes each event to its workflow. Workflow failures are
// logged and the message is acked; there are no retries.
func NewProcessor(
	orders OrderNotifier,
	queue QueueRunner,
	logger *slog.Logger,
) messagepipeline.StreamProcessor[Event] {
	logger = logger.With("component", "EventProcessor")

	return func(ctx context.Context, original messagepipeline.Message, event *Event) error {
		procLogger := logger.With(
			"kind", string(event.Kind),
			"document_id", event.DocumentID,
			"pubsub_msg_id", original.ID,
		)

		switch event.Kind {
		case OrderCreated:
			result, err := orders.NotifyAdminsOfOrder(ctx, *event.Order)
			if err != nil {
				procLogger.Error("Admin order alert failed", "err", err)
				return nil
			}
			procLogger.Info("Admin order alert sent", "success", result.SuccessCount, "failure", result.FailureCount)

		case OrderUpdated:
			outcome, _, err := orders.NotifyCustomerOfStatus(ctx, *event.Change)
			if err != nil {
				procLogger.Error("Customer status notification failed", "err", err)
				return nil
			}
			procLogger.Debug("Order update handled", "outcome", string(outcome))

		case QueueCreated:
			if err := queue.Process(ctx, event.DocumentID); err != nil {
				procLogger.Error("Queue item processing failed", "err", err)
			}

		default:
			procLogger.Warn("Dropping event of unknown kind")
		}
		return nil
	}
}
