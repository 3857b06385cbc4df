//go:build integration

package firestore_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/illmade-knight/go-test/emulators"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fs "github.com/mekobeko2222/bubbles-ecommerce-app/internal/storage/firestore"
	"github.com/mekobeko2222/bubbles-ecommerce-app/pkg/notification"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupSuite(t *testing.T) (context.Context, *firestore.Client) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	t.Cleanup(cancel)

	projectID := "test-bubbles-store"
	conn := emulators.SetupFirestoreEmulator(t, ctx, emulators.GetDefaultFirestoreConfig(projectID))
	client, err := firestore.NewClient(ctx, projectID, conn.ClientOptions...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return ctx, client
}

func TestAdminTokenStore_Integration(t *testing.T) {
	ctx, client := setupSuite(t)
	store := fs.NewAdminTokenStore(client)

	t.Run("Register, read and deactivate", func(t *testing.T) {
		owner := "admin-" + uuid.NewString()
		require.NoError(t, store.Register(ctx, owner, "token-a"))

		record, err := store.Get(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, owner, record.OwnerID)
		assert.Equal(t, "token-a", record.Token)
		assert.True(t, record.IsActive)
		assert.False(t, record.UpdatedAt.IsZero())

		tokens, err := store.ActiveTokens(ctx)
		require.NoError(t, err)
		assert.Contains(t, tokens, "token-a")

		require.NoError(t, store.Deactivate(ctx, owner))
		record, err = store.Get(ctx, owner)
		require.NoError(t, err)
		assert.False(t, record.IsActive)

		tokens, err = store.ActiveTokens(ctx)
		require.NoError(t, err)
		assert.NotContains(t, tokens, "token-a")
	})

	t.Run("Re-registering replaces the token", func(t *testing.T) {
		owner := "admin-" + uuid.NewString()
		require.NoError(t, store.Register(ctx, owner, "old-token"))
		require.NoError(t, store.Register(ctx, owner, "new-token"))

		record, err := store.Get(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, "new-token", record.Token)
	})

	t.Run("Deactivating a missing record is a no-op", func(t *testing.T) {
		require.NoError(t, store.Deactivate(ctx, "nobody-"+uuid.NewString()))
	})

	t.Run("Missing record is ErrNotFound", func(t *testing.T) {
		_, err := store.Get(ctx, "nobody-"+uuid.NewString())
		assert.True(t, errors.Is(err, notification.ErrNotFound))
	})
}

func TestSweepQueries_Integration(t *testing.T) {
	ctx, client := setupSuite(t)
	tokens := fs.NewAdminTokenStore(client)
	queue := fs.NewQueueStore(client)
	now := time.Now()
	day := 24 * time.Hour

	queueDoc := func(id string, processed bool, age time.Duration) {
		_, err := client.Collection(fs.QueueCollection).Doc(id).Set(ctx, map[string]interface{}{
			"payload":    map[string]interface{}{"title": "t", "body": "b"},
			"targetType": notification.QueueTargetAllAdmins,
			"processed":  processed,
			"createdAt":  now.Add(-age),
		})
		require.NoError(t, err)
	}
	queueDoc("old-processed", true, 8*day)
	queueDoc("recent-processed", true, 6*day)
	queueDoc("old-pending", false, 8*day)

	tokenDoc := func(id string, active bool, age time.Duration) {
		_, err := client.Collection(fs.AdminTokensCollection).Doc(id).Set(ctx, map[string]interface{}{
			"userId":    id,
			"token":     "tok-" + id,
			"isActive":  active,
			"updatedAt": now.Add(-age),
		})
		require.NoError(t, err)
	}
	tokenDoc("stale-active", true, 31*day)
	tokenDoc("stale-inactive", false, 45*day)
	tokenDoc("fresh", true, 2*day)

	deleted, err := queue.DeleteProcessedBefore(ctx, now.Add(-7*day))
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	exists := func(collection, id string) bool {
		_, err := client.Collection(collection).Doc(id).Get(ctx)
		return err == nil
	}
	assert.False(t, exists(fs.QueueCollection, "old-processed"))
	assert.True(t, exists(fs.QueueCollection, "recent-processed"))
	assert.True(t, exists(fs.QueueCollection, "old-pending"))

	deleted, err = tokens.DeleteUpdatedBefore(ctx, now.Add(-30*day))
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
	assert.False(t, exists(fs.AdminTokensCollection, "stale-active"))
	assert.False(t, exists(fs.AdminTokensCollection, "stale-inactive"))
	assert.True(t, exists(fs.AdminTokensCollection, "fresh"))

	t.Run("Counts", func(t *testing.T) {
		active, err := tokens.CountActive(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, active)

		pending, err := queue.CountPending(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, pending)

		recent, err := queue.CountProcessedSince(ctx, now.Add(-7*day))
		require.NoError(t, err)
		assert.Equal(t, 1, recent)
	})
}
