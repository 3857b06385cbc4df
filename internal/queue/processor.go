// Package queue drains notification_queue items written by the mobile client.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mekobeko2222/bubbles-ecommerce-app/internal/format"
	"github.com/mekobeko2222/bubbles-ecommerce-app/pkg/dispatch"
	"github.com/mekobeko2222/bubbles-ecommerce-app/pkg/notification"
)

// ErrUnknownTarget is recorded on items whose targetType is not routable.
var ErrUnknownTarget = errors.New("unknown target type")

// Sender is the part of notify.Service the processor routes to.
type Sender interface {
	SendToToken(ctx context.Context, token string, msg notification.Message) (*notification.DeliveryResult, error)
	BroadcastToAdmins(ctx context.Context, msg notification.Message) (*notification.DeliveryResult, error)
}

// Processor moves each item through pending, processing and done or failed.
type Processor struct {
	store  dispatch.QueueStore
	sender Sender
	logger *slog.Logger
}

func NewProcessor(store dispatch.QueueStore, sender Sender, logger *slog.Logger) *Processor {
	return &Processor{
		store:  store,
		sender: sender,
		logger: logger.With("component", "QueueProcessor"),
	}
}

// Process handles one item. Items already processed or claimed are skipped
// without any send or write. A dispatch failure is recorded on the item and
// is not returned; there is no automatic retry.
func (p *Processor) Process(ctx context.Context, id string) error {
	log := p.logger.With("queueId", id)

	item, claimed, err := p.store.Claim(ctx, id)
	if errors.Is(err, notification.ErrNotFound) {
		log.Warn("Queue item vanished before processing")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to claim queue item: %w", err)
	}
	if !claimed {
		log.Debug("Queue item already handled, skipping")
		return nil
	}

	dispatchErr := p.route(ctx, item)
	if dispatchErr != nil {
		log.Error("Queue item dispatch failed", "targetType", item.TargetType, "err", dispatchErr)
	} else {
		log.Info("Queue item dispatched", "targetType", item.TargetType)
	}

	if err := p.store.Complete(ctx, id, dispatchErr); err != nil {
		return fmt.Errorf("failed to complete queue item: %w", err)
	}
	return nil
}

func (p *Processor) route(ctx context.Context, item *notification.QueueItem) error {
	msg := format.Queued(item.Payload)

	switch item.TargetType {
	case notification.QueueTargetIndividual:
		_, err := p.sender.SendToToken(ctx, item.Payload.Token, msg)
		return err
	case notification.QueueTargetAllAdmins:
		_, err := p.sender.BroadcastToAdmins(ctx, msg)
		return err
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTarget, item.TargetType)
	}
}
