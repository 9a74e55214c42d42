package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"order-saga/internal/bus"
	"order-saga/internal/models"
	"order-saga/internal/storage"
	"order-saga/internal/util"
)

// OrderService owns the order lifecycle: accepting new orders into the
// saga and tracking them to their terminal state.
type OrderService struct {
	orders    storage.OrderStore
	products  storage.ProductStore
	accounts  storage.AccountStore
	publisher *bus.EventPublisher
	notifier  Notifier
	logger    *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	orders storage.OrderStore,
	products storage.ProductStore,
	accounts storage.AccountStore,
	publisher *bus.EventPublisher,
	notifier Notifier,
) *OrderService {
	return &OrderService{
		orders:    orders,
		products:  products,
		accounts:  accounts,
		publisher: publisher,
		notifier:  notifier,
		logger:    util.GetLogger(),
	}
}

// CreateOrderRequest represents a request to place an order
type CreateOrderRequest struct {
	Username    string `json:"username" binding:"required"`
	ProductName string `json:"product_name" binding:"required"`
	Quantity    int    `json:"quantity" binding:"required,min=1"`
}

// CreateOrder resolves the human-readable names to ids, persists the
// order as PENDING and publishes OrderCreated to start the saga. The
// order's outcome arrives asynchronously through the tracker.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	account, err := s.accounts.GetAccountByUsername(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user %q: %w", req.Username, err)
	}

	product, err := s.products.GetProductByName(ctx, req.ProductName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve product %q: %w", req.ProductName, err)
	}

	order := &models.Order{
		ID:        uuid.New(),
		UserID:    account.ID,
		ProductID: product.ID,
		Quantity:  req.Quantity,
		Status:    models.OrderStatusPending,
		Username:  account.Username,
	}

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.String("order_id", order.ID.String()),
		zap.String("username", order.Username))

	event := &models.OrderCreatedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeOrderCreated, order.ID),
		Timestamp: time.Now(),
		ProductID: order.ProductID,
		UserID:    order.UserID,
		Quantity:  order.Quantity,
		Username:  order.Username,
	}
	if err := s.publisher.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}

	return order, nil
}

// GetOrder retrieves an order by ID
func (s *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.orders.GetOrder(ctx, orderID)
}

// ListOrders retrieves all orders, newest first
func (s *OrderService) ListOrders(ctx context.Context) ([]models.Order, error) {
	return s.orders.ListOrders(ctx)
}

// HandleReservationFailed resolves the order as FAILED
func (s *OrderService) HandleReservationFailed(ctx context.Context, event *models.InventoryReservationFailedEvent) error {
	ctx, span := util.StartSpan(ctx, "OrderService.HandleReservationFailed", util.OrderAttributes(event.OrderID))
	defer span.End()
	return s.resolveOrder(ctx, event.Username, event.OrderID, models.OrderStatusFailed, event.Reason)
}

// HandleBalanceDebited resolves the order as COMPLETED
func (s *OrderService) HandleBalanceDebited(ctx context.Context, event *models.BalanceDebitedEvent) error {
	ctx, span := util.StartSpan(ctx, "OrderService.HandleBalanceDebited", util.OrderAttributes(event.OrderID))
	defer span.End()
	return s.resolveOrder(ctx, event.Username, event.OrderID, models.OrderStatusCompleted, "")
}

// HandleDebitFailed resolves the order as FAILED
func (s *OrderService) HandleDebitFailed(ctx context.Context, event *models.BalanceDebitFailedEvent) error {
	ctx, span := util.StartSpan(ctx, "OrderService.HandleDebitFailed", util.OrderAttributes(event.OrderID))
	defer span.End()
	return s.resolveOrder(ctx, event.Username, event.OrderID, models.OrderStatusFailed, event.Reason)
}

// resolveOrder advances a PENDING order to its terminal status exactly
// once. Terminal events racing in after the order resolved (redelivered
// messages, or a failure event trailing a success) are discarded.
func (s *OrderService) resolveOrder(ctx context.Context, username string, orderID uuid.UUID, status, reason string) error {
	start := time.Now()
	defer func() {
		util.HandlerLatency.WithLabelValues("order_resolve").Observe(time.Since(start).Seconds())
	}()

	order, err := s.orders.GetOrder(ctx, orderID)
	if errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("Order not found, discarding terminal event",
			zap.String("order_id", orderID.String()))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up order: %w", err)
	}

	transitioned, err := s.orders.TransitionStatus(ctx, orderID, status)
	if err != nil {
		return fmt.Errorf("failed to transition order status: %w", err)
	}
	if !transitioned {
		s.logger.Warn("Order already in a final state, ignoring status update",
			zap.String("order_id", orderID.String()),
			zap.String("current_status", order.Status),
			zap.String("attempted_status", status))
		return nil
	}

	switch status {
	case models.OrderStatusCompleted:
		util.OrdersCompletedTotal.Inc()
	case models.OrderStatusFailed:
		util.OrdersFailedTotal.WithLabelValues(reason).Inc()
	}

	s.logger.Info("Order resolved",
		zap.String("order_id", orderID.String()),
		zap.String("status", status))

	if err := s.notifier.NotifyOrderStatus(ctx, username, orderID, status); err != nil {
		s.logger.Error("Failed to notify order status",
			zap.String("order_id", orderID.String()),
			zap.Error(err))
	}
	return nil
}
