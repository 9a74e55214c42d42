package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"order-saga/internal/util"
)

const memoryQueueDepth = 1024

// MemoryBus is an in-process Bus with full topic-routing semantics. It
// backs the single-binary deployment and the choreography tests; the
// kafka driver is the durable alternative.
type MemoryBus struct {
	mu           sync.RWMutex
	bindings     map[string][]string
	queues       map[string]chan Delivery
	requeueDelay time.Duration
	logger       *zap.Logger
}

// NewMemoryBus creates an in-memory bus. Failed deliveries are requeued
// after requeueDelay, indefinitely.
func NewMemoryBus(requeueDelay time.Duration) *MemoryBus {
	return &MemoryBus{
		bindings:     make(map[string][]string),
		queues:       make(map[string]chan Delivery),
		requeueDelay: requeueDelay,
		logger:       util.GetLogger(),
	}
}

func (b *MemoryBus) Bind(queue, pattern string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bindings[queue] = append(b.bindings[queue], pattern)
	if _, ok := b.queues[queue]; !ok {
		b.queues[queue] = make(chan Delivery, memoryQueueDepth)
	}
}

// Publish fans the payload out to every queue with a matching binding.
// Each queue gets its own copy of the payload.
func (b *MemoryBus) Publish(ctx context.Context, routingKey string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for queue, patterns := range b.bindings {
		if !matchesAny(patterns, routingKey) {
			continue
		}
		body := make([]byte, len(payload))
		copy(body, payload)

		select {
		case b.queues[queue] <- Delivery{RoutingKey: routingKey, Body: body, Attempt: 1}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Consume runs concurrency handler goroutines over the queue until ctx
// is cancelled. A handler error requeues the delivery with its attempt
// count bumped; an ack is simply a nil return.
func (b *MemoryBus) Consume(ctx context.Context, queue string, handler Handler, concurrency int) error {
	b.mu.RLock()
	ch, ok := b.queues[queue]
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("queue not bound: %s", queue)
	}
	if concurrency < 1 {
		concurrency = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case d := <-ch:
					if err := b.handle(ctx, handler, d); err != nil {
						b.logger.Warn("Handler failed, scheduling redelivery",
							zap.String("queue", queue),
							zap.String("routing_key", d.RoutingKey),
							zap.Int("attempt", d.Attempt),
							zap.Error(err))
						b.requeue(ch, d)
					}
				}
			}
		}()
	}
	wg.Wait()
	return ctx.Err()
}

// handle invokes the handler, converting a panic into an error so a
// crashing handler behaves like an unacked delivery.
func (b *MemoryBus) handle(ctx context.Context, handler Handler, d Delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, d)
}

func (b *MemoryBus) requeue(ch chan Delivery, d Delivery) {
	d.Attempt++
	time.AfterFunc(b.requeueDelay, func() {
		ch <- d
	})
}

func (b *MemoryBus) Close() error {
	return nil
}

func matchesAny(patterns []string, key string) bool {
	for _, p := range patterns {
		if MatchTopic(p, key) {
			return true
		}
	}
	return false
}
