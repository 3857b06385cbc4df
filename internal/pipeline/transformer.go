// Package pipeline turns document-change events from Pub/Sub into
// notification workflows.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"

	"github.com/mekobeko2222/bubbles-ecommerce-app/pkg/notification"
)

// EventKind names the document change that produced an event.
type EventKind string

const (
	OrderCreated EventKind = "order.created"
	OrderUpdated EventKind = "order.updated"
	QueueCreated EventKind = "queue.created"
)

// Event is one document-change envelope. Order and Change are populated by
// the transformer for the order kinds.
type Event struct {
	Kind       EventKind       `json:"kind"`
	DocumentID string          `json:"documentId"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`

	Order  *notification.Order        `json:"-"`
	Change *notification.StatusChange `json:"-"`
}

// EventTransformer decodes and validates an envelope. Any failure sets
// skip=true so the StreamingService dead-letters the message.
func EventTransformer(_ context.Context, msg *messagepipeline.Message) (*Event, bool, error) {
	var event Event
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return nil, true, fmt.Errorf("failed to unmarshal event from message %s: %w", msg.ID, err)
	}
	if event.DocumentID == "" {
		return nil, true, fmt.Errorf("event in message %s has no documentId", msg.ID)
	}

	switch event.Kind {
	case OrderCreated:
		after, err := decodeOrder(event.DocumentID, event.After)
		if err != nil {
			return nil, true, fmt.Errorf("message %s: after: %w", msg.ID, err)
		}
		event.Order = after
	case OrderUpdated:
		before, err := decodeOrder(event.DocumentID, event.Before)
		if err != nil {
			return nil, true, fmt.Errorf("message %s: before: %w", msg.ID, err)
		}
		after, err := decodeOrder(event.DocumentID, event.After)
		if err != nil {
			return nil, true, fmt.Errorf("message %s: after: %w", msg.ID, err)
		}
		event.Change = &notification.StatusChange{OrderID: event.DocumentID, Before: *before, After: *after}
	case QueueCreated:
		// The processor reads the item itself inside its claim.
	default:
		return nil, true, fmt.Errorf("message %s has unknown event kind %q", msg.ID, event.Kind)
	}
	return &event, false, nil
}

func decodeOrder(id string, raw json.RawMessage) (*notification.Order, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("order snapshot is missing")
	}
	var order notification.Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, fmt.Errorf("failed to decode order snapshot: %w", err)
	}
	order.ID = id
	return &order, nil
}
