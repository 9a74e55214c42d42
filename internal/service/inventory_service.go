package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"order-saga/internal/bus"
	"order-saga/internal/models"
	"order-saga/internal/storage"
	"order-saga/internal/util"
)

// InventoryService owns the product domain's two saga steps: reserving
// stock when an order is created, and releasing it again when the
// balance debit downstream fails. The store commits each step together
// with its processed mark, so a delivery either fully ran or is safe to
// retry.
type InventoryService struct {
	products  storage.ProductStore
	publisher *bus.EventPublisher
	logger    *zap.Logger
}

// NewInventoryService creates a new inventory service
func NewInventoryService(products storage.ProductStore, publisher *bus.EventPublisher) *InventoryService {
	return &InventoryService{
		products:  products,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// ReserveInventory handles OrderCreated. Exactly one outcome event is
// produced per order: InventoryReserved on success, or
// InventoryReservationFailed with a reason.
func (s *InventoryService) ReserveInventory(ctx context.Context, event *models.OrderCreatedEvent) error {
	ctx, span := util.StartSpan(ctx, "InventoryService.ReserveInventory", util.OrderAttributes(event.OrderID))
	defer span.End()

	start := time.Now()
	defer func() {
		util.HandlerLatency.WithLabelValues("inventory_reserve").Observe(time.Since(start).Seconds())
	}()

	result, err := s.products.ReserveStockForOrder(ctx, event.OrderID, event.ProductID, event.Quantity)
	if err != nil {
		return fmt.Errorf("failed to reserve stock: %w", err)
	}

	if result.Duplicate {
		util.DuplicateDeliveriesTotal.WithLabelValues(models.ContextInventoryReserve).Inc()
		s.logger.Info("Duplicate OrderCreated delivery, ignoring",
			zap.String("order_id", event.OrderID.String()))
		return nil
	}

	if result.Product == nil {
		s.logger.Warn("Product not found, publishing reservation failure",
			zap.String("order_id", event.OrderID.String()),
			zap.Int64("product_id", event.ProductID))
		s.publishReservationFailure(ctx, event, models.ReasonProductNotFound, "Product could not be found")
		return nil
	}

	if !result.Reserved {
		s.logger.Warn("Insufficient stock",
			zap.String("order_id", event.OrderID.String()),
			zap.Int64("product_id", result.Product.ID),
			zap.Int("requested", event.Quantity),
			zap.Int("available", result.Product.Quantity))
		s.publishReservationFailure(ctx, event, models.ReasonInsufficientStock,
			fmt.Sprintf("Insufficient stock, available items: %d", result.Product.Quantity))
		return nil
	}

	product := result.Product
	util.InventoryReservedTotal.Inc()
	s.logger.Info("Stock reserved",
		zap.String("order_id", event.OrderID.String()),
		zap.Int64("product_id", product.ID),
		zap.Int("quantity", event.Quantity))

	reservedEvent := &models.InventoryReservedEvent{
		BaseEvent:   models.NewBaseEvent(models.EventTypeInventoryReserved, event.OrderID),
		UserID:      event.UserID,
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    event.Quantity,
		UnitPrice:   product.Price,
		TotalPrice:  product.Price * int64(event.Quantity),
		Username:    event.Username,
	}
	if err := s.publisher.PublishInventoryReserved(ctx, reservedEvent); err != nil {
		s.logger.Error("Failed to publish InventoryReserved event", zap.Error(err))
	}
	return nil
}

// ReleaseInventory handles BalanceDebitFailed by returning the reserved
// quantity to the product. This is the saga's only compensation; there
// is nothing to undo it, so an unresolvable failure here is surfaced as
// an operational alert rather than retried.
func (s *InventoryService) ReleaseInventory(ctx context.Context, event *models.BalanceDebitFailedEvent) error {
	ctx, span := util.StartSpan(ctx, "InventoryService.ReleaseInventory", util.OrderAttributes(event.OrderID))
	defer span.End()

	start := time.Now()
	defer func() {
		util.HandlerLatency.WithLabelValues("inventory_release").Observe(time.Since(start).Seconds())
	}()

	result, err := s.products.ReleaseStockForOrder(ctx, event.OrderID, event.ProductID, event.Quantity)
	if err != nil {
		return fmt.Errorf("failed to release stock: %w", err)
	}

	if result.Duplicate {
		util.DuplicateDeliveriesTotal.WithLabelValues(models.ContextInventoryRelease).Inc()
		s.logger.Info("Duplicate BalanceDebitFailed delivery, ignoring",
			zap.String("order_id", event.OrderID.String()))
		return nil
	}

	if !result.Released {
		util.CompensationFailuresTotal.Inc()
		s.logger.Error("Cannot release stock, product missing; manual intervention required",
			zap.String("order_id", event.OrderID.String()),
			zap.Int64("product_id", event.ProductID),
			zap.Int("quantity", event.Quantity))
		return nil
	}

	util.InventoryReleasedTotal.Inc()
	s.logger.Info("Reserved stock released",
		zap.String("order_id", event.OrderID.String()),
		zap.Int64("product_id", event.ProductID),
		zap.Int("quantity", event.Quantity))
	return nil
}

func (s *InventoryService) publishReservationFailure(ctx context.Context, event *models.OrderCreatedEvent, reason, message string) {
	util.InventoryReservationsFailed.WithLabelValues(reason).Inc()

	failedEvent := &models.InventoryReservationFailedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeInventoryReservationFailed, event.OrderID),
		ProductID: event.ProductID,
		Reason:    reason,
		Message:   message,
		Username:  event.Username,
	}
	if err := s.publisher.PublishInventoryReservationFailed(ctx, failedEvent); err != nil {
		s.logger.Error("Failed to publish InventoryReservationFailed event", zap.Error(err))
	}
}
