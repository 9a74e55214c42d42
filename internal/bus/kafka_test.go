package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKafkaBus() *KafkaBus {
	b := NewKafkaBus([]string{"localhost:9092"}, "order-events")
	b.retryDelay = time.Millisecond
	return b
}

func TestKafkaHandleWithRetry(t *testing.T) {
	b := newTestKafkaBus()

	var attempts []int
	handler := func(_ context.Context, d Delivery) error {
		attempts = append(attempts, d.Attempt)
		if len(attempts) < 3 {
			return errors.New("transient")
		}
		return nil
	}

	d := Delivery{RoutingKey: KeyOrderCreated, Body: []byte(`{}`), Attempt: 1}
	err := b.handleWithRetry(context.Background(), QueueInventory, d, handler)
	require.NoError(t, err)

	// The same message is re-handled in place until acked; the consumer
	// never moves on to the next offset with this one unresolved.
	assert.Equal(t, []int{1, 2, 3}, attempts)
}

func TestKafkaHandleWithRetryStopsOnCancel(t *testing.T) {
	b := newTestKafkaBus()
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	handler := func(context.Context, Delivery) error {
		calls++
		if calls == 2 {
			cancel()
		}
		return errors.New("still failing")
	}

	d := Delivery{RoutingKey: KeyOrderCreated, Body: []byte(`{}`), Attempt: 1}
	err := b.handleWithRetry(ctx, QueueInventory, d, handler)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestKafkaHandleWithRetryAcksFirstTry(t *testing.T) {
	b := newTestKafkaBus()

	calls := 0
	handler := func(context.Context, Delivery) error {
		calls++
		return nil
	}

	d := Delivery{RoutingKey: KeyInventoryReserved, Body: []byte(`{}`), Attempt: 1}
	require.NoError(t, b.handleWithRetry(context.Background(), QueueBalance, d, handler))
	assert.Equal(t, 1, calls)
}
