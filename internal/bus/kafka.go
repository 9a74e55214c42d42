package bus

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"order-saga/internal/util"
)

const routingKeyHeader = "routing-key"

// KafkaBus implements Bus over a single Kafka topic. Kafka has no
// broker-side topic-pattern routing, so the routing key travels in a
// message header and each queue's consumer group filters against its
// own bindings, committing non-matching messages immediately.
type KafkaBus struct {
	brokers    []string
	topic      string
	writer     *kafka.Writer
	logger     *zap.Logger
	retryDelay time.Duration

	mu       sync.RWMutex
	bindings map[string][]string
	readers  []*kafka.Reader
}

// NewKafkaBus creates a Kafka-backed bus publishing to a single topic.
func NewKafkaBus(brokers []string, topic string) *KafkaBus {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	return &KafkaBus{
		brokers:    brokers,
		topic:      topic,
		writer:     writer,
		logger:     util.GetLogger(),
		retryDelay: time.Second,
		bindings:   make(map[string][]string),
	}
}

func (b *KafkaBus) Bind(queue, pattern string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bindings[queue] = append(b.bindings[queue], pattern)
}

func (b *KafkaBus) Publish(ctx context.Context, routingKey string, payload []byte) error {
	msg := kafka.Message{
		Key:   []byte(routingKey),
		Value: payload,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: routingKeyHeader, Value: []byte(routingKey)},
		},
	}

	if err := b.writer.WriteMessages(ctx, msg); err != nil {
		return err
	}

	b.logger.Debug("Published event", zap.String("routing_key", routingKey))
	return nil
}

// Consume fetches messages for the queue's consumer group and hands
// matching ones to the handler. A message is committed only after the
// handler returns nil; handler errors leave it uncommitted so the group
// sees it again.
func (b *KafkaBus) Consume(ctx context.Context, queue string, handler Handler, concurrency int) error {
	if concurrency < 1 {
		concurrency = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:        b.brokers,
			Topic:          b.topic,
			GroupID:        queue,
			MinBytes:       1,
			MaxBytes:       10e6,
			CommitInterval: 0, // synchronous commits, ack-after-handle
			StartOffset:    kafka.FirstOffset,
		})
		b.mu.Lock()
		b.readers = append(b.readers, reader)
		b.mu.Unlock()

		wg.Add(1)
		go func() {
			defer wg.Done()
			b.consumeLoop(ctx, queue, reader, handler)
		}()
	}
	wg.Wait()
	return ctx.Err()
}

func (b *KafkaBus) consumeLoop(ctx context.Context, queue string, reader *kafka.Reader, handler Handler) {
	b.logger.Info("Starting kafka consumer",
		zap.String("queue", queue),
		zap.String("topic", b.topic))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.logger.Error("Error fetching message", zap.String("queue", queue), zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		routingKey := headerValue(msg, routingKeyHeader)
		if routingKey == "" {
			routingKey = string(msg.Key)
		}

		b.mu.RLock()
		matched := matchesAny(b.bindings[queue], routingKey)
		b.mu.RUnlock()

		if !matched {
			// Not for this queue; ack and move on.
			if err := reader.CommitMessages(ctx, msg); err != nil {
				b.logger.Error("Error committing skipped message", zap.Error(err))
			}
			continue
		}

		d := Delivery{RoutingKey: routingKey, Body: msg.Value, Attempt: 1}
		if err := b.handleWithRetry(ctx, queue, d, handler); err != nil {
			// Only a cancelled context gets here; the message stays
			// uncommitted for the next group member.
			return
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			b.logger.Error("Error committing message", zap.String("queue", queue), zap.Error(err))
		}
	}
}

// handleWithRetry redelivers the same message to the handler, in place,
// until it is acked. A group reader only re-serves an uncommitted
// offset after a rebalance, so retrying before fetching the next
// message is what makes handler errors actually mean "try again".
func (b *KafkaBus) handleWithRetry(ctx context.Context, queue string, d Delivery, handler Handler) error {
	for {
		err := handler(ctx, d)
		if err == nil {
			return nil
		}
		b.logger.Warn("Handler failed, redelivering",
			zap.String("queue", queue),
			zap.String("routing_key", d.RoutingKey),
			zap.Int("attempt", d.Attempt),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.retryDelay):
		}
		d.Attempt++
	}
}

func (b *KafkaBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range b.readers {
		_ = r.Close()
	}
	return b.writer.Close()
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
