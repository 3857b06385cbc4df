package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	firestorepb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mekobeko2222/bubbles-ecommerce-app/pkg/notification"
)

// Collection names shared with the mobile client.
const (
	AdminTokensCollection = "admin_tokens"
	UsersCollection       = "users"
	QueueCollection       = "notification_queue"
)

// AdminTokenStore implements dispatch.AdminTokenStore on Firestore.
// Documents are keyed by the owning user's id.
type AdminTokenStore struct {
	client *firestore.Client
}

func NewAdminTokenStore(client *firestore.Client) *AdminTokenStore {
	return &AdminTokenStore{client: client}
}

func (s *AdminTokenStore) Register(ctx context.Context, ownerID, token string) error {
	_, err := s.ref(ownerID).Set(ctx, map[string]interface{}{
		"userId":    ownerID,
		"token":     token,
		"isActive":  true,
		"createdAt": firestore.ServerTimestamp,
		"updatedAt": firestore.ServerTimestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to register admin token for %s: %w", ownerID, err)
	}
	return nil
}

func (s *AdminTokenStore) Deactivate(ctx context.Context, ownerID string) error {
	_, err := s.ref(ownerID).Update(ctx, []firestore.Update{
		{Path: "isActive", Value: false},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	})
	if status.Code(err) == codes.NotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to deactivate admin token for %s: %w", ownerID, err)
	}
	return nil
}

func (s *AdminTokenStore) Get(ctx context.Context, ownerID string) (*notification.TokenRecord, error) {
	doc, err := s.ref(ownerID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, notification.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get admin token for %s: %w", ownerID, err)
	}

	var record notification.TokenRecord
	if err := doc.DataTo(&record); err != nil {
		return nil, fmt.Errorf("failed to decode admin token %s: %w", ownerID, err)
	}
	return &record, nil
}

func (s *AdminTokenStore) ActiveTokens(ctx context.Context) ([]string, error) {
	iter := s.active().Documents(ctx)
	defer iter.Stop()

	tokens := make([]string, 0)
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore iteration failed: %w", err)
		}

		var record notification.TokenRecord
		if err := doc.DataTo(&record); err != nil {
			// Corrupt rows are skipped.
			continue
		}
		if record.Token != "" {
			tokens = append(tokens, record.Token)
		}
	}
	return tokens, nil
}

func (s *AdminTokenStore) CountActive(ctx context.Context) (int, error) {
	return count(ctx, s.active())
}

func (s *AdminTokenStore) DeleteUpdatedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	q := s.client.Collection(AdminTokensCollection).Where("updatedAt", "<", cutoff)
	return bulkDelete(ctx, s.client, q)
}

func (s *AdminTokenStore) active() firestore.Query {
	return s.client.Collection(AdminTokensCollection).Where("isActive", "==", true)
}

func (s *AdminTokenStore) ref(ownerID string) *firestore.DocumentRef {
	return s.client.Collection(AdminTokensCollection).Doc(ownerID)
}

// count runs a server-side count aggregation over q.
func count(ctx context.Context, q firestore.Query) (int, error) {
	res, err := q.NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("count aggregation failed: %w", err)
	}
	v, ok := res["all"].(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("count aggregation returned %T", res["all"])
	}
	return int(v.GetIntegerValue()), nil
}

// bulkDelete removes every document matched by q and reports how many
// deletes the BulkWriter confirmed.
func bulkDelete(ctx context.Context, client *firestore.Client, q firestore.Query) (int, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	bw := client.BulkWriter(ctx)
	var jobs []writeJob
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			bw.End()
			deleted, _ := settle(jobs)
			return deleted, fmt.Errorf("firestore iteration failed: %w", err)
		}
		job, err := bw.Delete(doc.Ref)
		if err != nil {
			bw.End()
			deleted, _ := settle(jobs)
			return deleted, fmt.Errorf("failed to queue delete of %s: %w", doc.Ref.ID, err)
		}
		jobs = append(jobs, job)
	}
	bw.End()
	return settle(jobs)
}

// writeJob is the part of *firestore.BulkWriterJob bulkDelete waits on.
type writeJob interface {
	Results() (*firestore.WriteResult, error)
}

// settle counts the jobs that succeeded. It must run after the BulkWriter
// has been ended so that every job has resolved.
func settle(jobs []writeJob) (int, error) {
	deleted, failed := 0, 0
	var first error
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			failed++
			if first == nil {
				first = err
			}
			continue
		}
		deleted++
	}
	if failed > 0 {
		return deleted, fmt.Errorf("%d of %d deletes failed: %w", failed, len(jobs), first)
	}
	return deleted, nil
}
