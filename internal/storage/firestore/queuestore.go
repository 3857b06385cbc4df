package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mekobeko2222/bubbles-ecommerce-app/pkg/notification"
)

// QueueStore implements dispatch.QueueStore on the notification_queue collection.
type QueueStore struct {
	client *firestore.Client
}

func NewQueueStore(client *firestore.Client) *QueueStore {
	return &QueueStore{client: client}
}

// Claim reads the item and sets processing=true in one transaction. Items
// that are already processed or claimed are returned with claimed=false and
// are not written.
func (s *QueueStore) Claim(ctx context.Context, id string) (*notification.QueueItem, bool, error) {
	ref := s.ref(id)

	var item notification.QueueItem
	claimed := false
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		claimed = false
		doc, err := tx.Get(ref)
		if err != nil {
			return err
		}
		item = notification.QueueItem{}
		if err := doc.DataTo(&item); err != nil {
			return fmt.Errorf("failed to decode queue item %s: %w", id, err)
		}
		if item.Processed || item.Processing {
			return nil
		}
		claimed = true
		return tx.Update(ref, []firestore.Update{{Path: "processing", Value: true}})
	})
	if status.Code(err) == codes.NotFound {
		return nil, false, notification.ErrNotFound
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to claim queue item %s: %w", id, err)
	}

	item.ID = id
	return &item, claimed, nil
}

func (s *QueueStore) Complete(ctx context.Context, id string, dispatchErr error) error {
	updates := []firestore.Update{
		{Path: "processing", Value: false},
		{Path: "processed", Value: true},
		{Path: "processedAt", Value: firestore.ServerTimestamp},
	}
	if dispatchErr != nil {
		updates = append(updates,
			firestore.Update{Path: "failed", Value: true},
			firestore.Update{Path: "error", Value: dispatchErr.Error()},
		)
	}

	if _, err := s.ref(id).Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to complete queue item %s: %w", id, err)
	}
	return nil
}

func (s *QueueStore) CountPending(ctx context.Context) (int, error) {
	return count(ctx, s.client.Collection(QueueCollection).Where("processed", "==", false))
}

func (s *QueueStore) CountProcessedSince(ctx context.Context, since time.Time) (int, error) {
	q := s.client.Collection(QueueCollection).
		Where("processed", "==", true).
		Where("createdAt", ">", since)
	return count(ctx, q)
}

func (s *QueueStore) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	q := s.client.Collection(QueueCollection).
		Where("processed", "==", true).
		Where("createdAt", "<", cutoff)
	return bulkDelete(ctx, s.client, q)
}

func (s *QueueStore) ref(id string) *firestore.DocumentRef {
	return s.client.Collection(QueueCollection).Doc(id)
}
