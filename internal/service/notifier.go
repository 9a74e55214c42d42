package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"order-saga/internal/util"
)

// Notifier pushes an order's terminal status to the originating client,
// keyed by username. Delivery is best effort; the saga never depends on
// it.
type Notifier interface {
	NotifyOrderStatus(ctx context.Context, username string, orderID uuid.UUID, status string) error
}

// LogNotifier writes status updates to the log. Used when no push
// channel is configured, and by tests.
type LogNotifier struct{}

func (LogNotifier) NotifyOrderStatus(_ context.Context, username string, orderID uuid.UUID, status string) error {
	util.GetLogger().Info("Order status notification",
		zap.String("username", username),
		zap.String("order_id", orderID.String()),
		zap.String("status", status))
	return nil
}
