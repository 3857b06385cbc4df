package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mekobeko2222/bubbles-ecommerce-app/internal/pipeline"
)

func message(id, payload string) *messagepipeline.Message {
	return &messagepipeline.Message{
		MessageData: messagepipeline.MessageData{ID: id, Payload: []byte(payload)},
	}
}

func TestEventTransformer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	t.Run("Order created", func(t *testing.T) {
		event, skip, err := pipeline.EventTransformer(ctx, message("msg-1",
			`{"kind":"order.created","documentId":"abc12345xyz","after":{"userId":"u1","userEmail":"a@b.c","totalPrice":149.5,"items":[{},{},{}],"orderStatus":"Pending"}}`))

		require.NoError(t, err)
		assert.False(t, skip)
		require.NotNil(t, event.Order)
		assert.Equal(t, "abc12345xyz", event.Order.ID)
		assert.Equal(t, 149.5, event.Order.TotalPrice)
		assert.Len(t, event.Order.Items, 3)
	})

	t.Run("Order updated carries both snapshots", func(t *testing.T) {
		event, skip, err := pipeline.EventTransformer(ctx, message("msg-2",
			`{"kind":"order.updated","documentId":"o1","before":{"userId":"u1","orderStatus":"Pending"},"after":{"userId":"u1","orderStatus":"Shipped"}}`))

		require.NoError(t, err)
		assert.False(t, skip)
		require.NotNil(t, event.Change)
		assert.Equal(t, "o1", event.Change.OrderID)
		assert.Equal(t, "Pending", event.Change.Before.OrderStatus)
		assert.Equal(t, "Shipped", event.Change.After.OrderStatus)
	})

	t.Run("Queue created needs only the id", func(t *testing.T) {
		event, skip, err := pipeline.EventTransformer(ctx, message("msg-3", `{"kind":"queue.created","documentId":"q1"}`))

		require.NoError(t, err)
		assert.False(t, skip)
		assert.Equal(t, pipeline.QueueCreated, event.Kind)
		assert.Equal(t, "q1", event.DocumentID)
	})

	failures := []struct {
		name     string
		payload  string
		contains string
	}{
		{"Malformed JSON", "not-json", "failed to unmarshal event"},
		{"Missing document id", `{"kind":"queue.created"}`, "no documentId"},
		{"Unknown kind", `{"kind":"user.deleted","documentId":"x"}`, "unknown event kind"},
		{"Update without before", `{"kind":"order.updated","documentId":"o1","after":{"orderStatus":"Shipped"}}`, "before"},
		{"Create with null after", `{"kind":"order.created","documentId":"o1","after":null}`, "missing"},
	}
	for _, tc := range failures {
		t.Run(tc.name, func(t *testing.T) {
			_, skip, err := pipeline.EventTransformer(ctx, message("bad", tc.payload))

			require.Error(t, err)
			assert.True(t, skip)
			assert.Contains(t, err.Error(), tc.contains)
		})
	}
}
