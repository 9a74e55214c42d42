package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"order-saga/internal/bus"
	"order-saga/internal/models"
)

// recorderBus records every published message in order. Bind and
// Consume are no-ops; the unit tests drive handlers directly.
type recorderBus struct {
	mu        sync.Mutex
	published []bus.Delivery
}

func (r *recorderBus) Publish(_ context.Context, routingKey string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	body := make([]byte, len(payload))
	copy(body, payload)
	r.published = append(r.published, bus.Delivery{RoutingKey: routingKey, Body: body})
	return nil
}

func (r *recorderBus) Bind(string, string) {}

func (r *recorderBus) Consume(context.Context, string, bus.Handler, int) error { return nil }

func (r *recorderBus) Close() error { return nil }

// events decodes everything published so far.
func (r *recorderBus) events(t *testing.T) []models.Event {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Event, 0, len(r.published))
	for _, d := range r.published {
		event, err := models.DecodeEvent(d.Body)
		require.NoError(t, err)
		out = append(out, event)
	}
	return out
}

func (r *recorderBus) keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.published))
	for _, d := range r.published {
		out = append(out, d.RoutingKey)
	}
	return out
}
