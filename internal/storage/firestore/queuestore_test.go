//go:build integration

package firestore_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fs "github.com/mekobeko2222/bubbles-ecommerce-app/internal/storage/firestore"
	"github.com/mekobeko2222/bubbles-ecommerce-app/pkg/notification"
)

func TestQueueStore_Integration(t *testing.T) {
	ctx, client := setupSuite(t)
	store := fs.NewQueueStore(client)

	seed := func(id string, processed bool) {
		_, err := client.Collection(fs.QueueCollection).Doc(id).Set(ctx, map[string]interface{}{
			"payload": map[string]interface{}{
				"token": "device-token",
				"title": "Hello",
				"body":  "World",
				"data":  map[string]interface{}{"type": "order"},
			},
			"targetType": notification.QueueTargetIndividual,
			"processed":  processed,
			"createdAt":  time.Now(),
		})
		require.NoError(t, err)
	}

	t.Run("Claim then complete successfully", func(t *testing.T) {
		seed("q-ok", false)

		item, claimed, err := store.Claim(ctx, "q-ok")
		require.NoError(t, err)
		require.True(t, claimed)
		assert.Equal(t, "q-ok", item.ID)
		assert.Equal(t, "device-token", item.Payload.Token)
		assert.Equal(t, "order", item.Payload.Data["type"])

		_, claimedAgain, err := store.Claim(ctx, "q-ok")
		require.NoError(t, err)
		assert.False(t, claimedAgain, "a claimed item cannot be claimed twice")

		require.NoError(t, store.Complete(ctx, "q-ok", nil))

		doc, err := client.Collection(fs.QueueCollection).Doc("q-ok").Get(ctx)
		require.NoError(t, err)
		var stored notification.QueueItem
		require.NoError(t, doc.DataTo(&stored))
		assert.True(t, stored.Processed)
		assert.False(t, stored.Processing)
		assert.False(t, stored.Failed)
		assert.False(t, stored.ProcessedAt.IsZero())
	})

	t.Run("Complete records a failure", func(t *testing.T) {
		seed("q-fail", false)
		_, claimed, err := store.Claim(ctx, "q-fail")
		require.NoError(t, err)
		require.True(t, claimed)

		require.NoError(t, store.Complete(ctx, "q-fail", errors.New("unknown target type")))

		doc, err := client.Collection(fs.QueueCollection).Doc("q-fail").Get(ctx)
		require.NoError(t, err)
		var stored notification.QueueItem
		require.NoError(t, doc.DataTo(&stored))
		assert.True(t, stored.Processed)
		assert.True(t, stored.Failed)
		assert.Equal(t, "unknown target type", stored.Error)
	})

	t.Run("Processed item is not claimed or written", func(t *testing.T) {
		seed("q-done", true)
		before, err := client.Collection(fs.QueueCollection).Doc("q-done").Get(ctx)
		require.NoError(t, err)

		_, claimed, err := store.Claim(ctx, "q-done")
		require.NoError(t, err)
		assert.False(t, claimed)

		after, err := client.Collection(fs.QueueCollection).Doc("q-done").Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, before.UpdateTime, after.UpdateTime)
	})

	t.Run("Missing item", func(t *testing.T) {
		_, _, err := store.Claim(ctx, "q-missing")
		assert.True(t, errors.Is(err, notification.ErrNotFound))
	})
}
