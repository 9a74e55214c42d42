// Package bus is the topic-routed event channel the saga choreography
// runs on. A publisher addresses a routing key, never a queue; queues
// receive every message whose key matches one of their binding patterns.
// Delivery is at-least-once: a handler that returns an error (or a process
// that dies before acking) sees the message again.
package bus

import "context"

// Routing keys
const (
	KeyOrderCreated      = "order.created"
	KeyInventoryReserved = "inventory.reserved"
	KeyInventoryFailed   = "inventory.failed"
	KeyBalanceSuccess    = "balance.success"
	KeyBalanceFailed     = "balance.failed"
)

// Queue names, one per consuming domain
const (
	QueueInventory = "inventory-queue"
	QueueBalance   = "balance-queue"
	QueueOrder     = "order-queue"
)

// Delivery is a single message handed to a queue consumer.
type Delivery struct {
	RoutingKey string
	Body       []byte
	Attempt    int
}

// Handler processes one delivery. Returning nil acks the message;
// returning an error leaves it unacked for redelivery.
type Handler func(ctx context.Context, d Delivery) error

// Bus is the publish/subscribe contract shared by the memory and kafka
// drivers.
type Bus interface {
	// Publish sends a payload to every queue bound to a pattern matching
	// the routing key. Fire-and-forget from the caller's point of view.
	Publish(ctx context.Context, routingKey string, payload []byte) error

	// Bind subscribes a queue to a routing-key pattern. Patterns use
	// '.'-separated segments, '*' for one segment and '#' for zero or
	// more segments.
	Bind(queue, pattern string)

	// Consume delivers the queue's messages to handler until ctx is
	// cancelled, running at most concurrency handlers at once.
	Consume(ctx context.Context, queue string, handler Handler, concurrency int) error

	Close() error
}

// BindSagaTopology applies the routing table of the order saga:
//
//	order.created      -> inventory-queue   (reserve stock)
//	inventory.reserved -> balance-queue     (debit balance)
//	inventory.#        -> order-queue       (terminal tracking)
//	balance.#          -> order-queue       (terminal tracking)
//	balance.failed     -> inventory-queue   (compensation)
func BindSagaTopology(b Bus) {
	b.Bind(QueueInventory, KeyOrderCreated)
	b.Bind(QueueInventory, KeyBalanceFailed)
	b.Bind(QueueBalance, KeyInventoryReserved)
	b.Bind(QueueOrder, "inventory.#")
	b.Bind(QueueOrder, "balance.#")
}
