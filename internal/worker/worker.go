// Package worker binds the bus queues to the domain services. Each
// worker decodes deliveries into the event union and dispatches on the
// event type; undecodable payloads are acked and logged so a poison
// message cannot wedge a queue.
package worker

import (
	"context"

	"go.uber.org/zap"

	"order-saga/internal/bus"
	"order-saga/internal/models"
	"order-saga/internal/service"
	"order-saga/internal/util"
)

// InventoryWorker consumes the product domain's queue: OrderCreated for
// reservations and BalanceDebitFailed for compensations.
type InventoryWorker struct {
	bus         bus.Bus
	inventory   *service.InventoryService
	concurrency int
	logger      *zap.Logger
}

// NewInventoryWorker creates a new inventory worker
func NewInventoryWorker(b bus.Bus, inventory *service.InventoryService, concurrency int) *InventoryWorker {
	return &InventoryWorker{
		bus:         b,
		inventory:   inventory,
		concurrency: concurrency,
		logger:      util.GetLogger(),
	}
}

// Start consumes the inventory queue until ctx is cancelled
func (w *InventoryWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting inventory worker")
	return w.bus.Consume(ctx, bus.QueueInventory, w.handle, w.concurrency)
}

func (w *InventoryWorker) handle(ctx context.Context, d bus.Delivery) error {
	event, err := models.DecodeEvent(d.Body)
	if err != nil {
		w.logger.Error("Dropping undecodable message",
			zap.String("routing_key", d.RoutingKey), zap.Error(err))
		return nil
	}

	switch e := event.(type) {
	case *models.OrderCreatedEvent:
		return w.inventory.ReserveInventory(ctx, e)
	case *models.BalanceDebitFailedEvent:
		return w.inventory.ReleaseInventory(ctx, e)
	default:
		w.logger.Debug("Ignoring event on inventory queue",
			zap.String("event_type", event.Type()))
		return nil
	}
}

// BalanceWorker consumes the account domain's queue: InventoryReserved
// triggers the debit.
type BalanceWorker struct {
	bus         bus.Bus
	accounts    *service.AccountService
	concurrency int
	logger      *zap.Logger
}

// NewBalanceWorker creates a new balance worker
func NewBalanceWorker(b bus.Bus, accounts *service.AccountService, concurrency int) *BalanceWorker {
	return &BalanceWorker{
		bus:         b,
		accounts:    accounts,
		concurrency: concurrency,
		logger:      util.GetLogger(),
	}
}

// Start consumes the balance queue until ctx is cancelled
func (w *BalanceWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting balance worker")
	return w.bus.Consume(ctx, bus.QueueBalance, w.handle, w.concurrency)
}

func (w *BalanceWorker) handle(ctx context.Context, d bus.Delivery) error {
	event, err := models.DecodeEvent(d.Body)
	if err != nil {
		w.logger.Error("Dropping undecodable message",
			zap.String("routing_key", d.RoutingKey), zap.Error(err))
		return nil
	}

	switch e := event.(type) {
	case *models.InventoryReservedEvent:
		return w.accounts.DebitBalance(ctx, e)
	default:
		w.logger.Debug("Ignoring event on balance queue",
			zap.String("event_type", event.Type()))
		return nil
	}
}

// OrderWorker consumes the order domain's queue, which is bound broadly
// to inventory.# and balance.#. Only terminal events advance an order;
// InventoryReserved also lands here and is discarded.
type OrderWorker struct {
	bus         bus.Bus
	orders      *service.OrderService
	concurrency int
	logger      *zap.Logger
}

// NewOrderWorker creates a new order worker
func NewOrderWorker(b bus.Bus, orders *service.OrderService, concurrency int) *OrderWorker {
	return &OrderWorker{
		bus:         b,
		orders:      orders,
		concurrency: concurrency,
		logger:      util.GetLogger(),
	}
}

// Start consumes the order queue until ctx is cancelled
func (w *OrderWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting order worker")
	return w.bus.Consume(ctx, bus.QueueOrder, w.handle, w.concurrency)
}

func (w *OrderWorker) handle(ctx context.Context, d bus.Delivery) error {
	event, err := models.DecodeEvent(d.Body)
	if err != nil {
		w.logger.Error("Dropping undecodable message",
			zap.String("routing_key", d.RoutingKey), zap.Error(err))
		return nil
	}

	switch e := event.(type) {
	case *models.InventoryReservationFailedEvent:
		return w.orders.HandleReservationFailed(ctx, e)
	case *models.BalanceDebitedEvent:
		return w.orders.HandleBalanceDebited(ctx, e)
	case *models.BalanceDebitFailedEvent:
		return w.orders.HandleDebitFailed(ctx, e)
	case *models.InventoryReservedEvent:
		// Non-terminal; the broad inventory.# binding delivers it here.
		w.logger.Debug("Ignoring non-terminal event",
			zap.String("order_id", e.OrderID.String()))
		return nil
	default:
		w.logger.Debug("Ignoring event on order queue",
			zap.String("event_type", event.Type()))
		return nil
	}
}
