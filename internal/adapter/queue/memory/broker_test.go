package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crabzie/RabbitMQ-Task-Pipeline/internal/core/port"
)

func TestSendConsume_RoundTripsPayload(t *testing.T) {
	broker := NewBroker(zap.NewNop())
	ctx := context.Background()

	received := make(chan port.Message, 1)
	require.NoError(t, broker.Consume(ctx, func(msg port.Message) error {
		received <- msg
		return nil
	}))
	defer broker.StopConsuming()

	payload := map[string]string{"oid": "abc123", "description": "demo", "status": "queued"}
	require.NoError(t, broker.Send(ctx, "task.created", payload))

	select {
	case msg := <-received:
		assert.Equal(t, "task.created", msg.RoutingKey)
		var got map[string]string
		require.NoError(t, json.Unmarshal(msg.Body, &got))
		assert.Equal(t, payload, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestConsume_HandlerErrorDropsMessage(t *testing.T) {
	broker := NewBroker(zap.NewNop())
	ctx := context.Background()

	calls := make(chan string, 2)
	require.NoError(t, broker.Consume(ctx, func(msg port.Message) error {
		calls <- msg.RoutingKey
		if msg.RoutingKey == "task.poison" {
			return errors.New("boom")
		}
		return nil
	}))
	defer broker.StopConsuming()

	require.NoError(t, broker.Send(ctx, "task.poison", "bad"))
	require.NoError(t, broker.Send(ctx, "task.created", "good"))

	// Both deliveries are handled; the failed one is dropped, not retried.
	assert.Equal(t, "task.poison", <-calls)
	assert.Equal(t, "task.created", <-calls)

	select {
	case key := <-calls:
		t.Fatalf("unexpected redelivery of %s", key)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStartAndStop_Idempotent(t *testing.T) {
	broker := NewBroker(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, broker.Start(ctx))
	require.NoError(t, broker.Start(ctx))

	require.NoError(t, broker.StopConsuming())
	require.NoError(t, broker.StopConsuming())

	require.NoError(t, broker.Close())
	require.NoError(t, broker.Close(), "close is tolerant of a broker that is already closed")
}
