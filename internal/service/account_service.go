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

// AccountService owns the user domain's saga step: debiting the order
// total once stock is reserved.
type AccountService struct {
	accounts  storage.AccountStore
	publisher *bus.EventPublisher
	logger    *zap.Logger
}

// NewAccountService creates a new account service
func NewAccountService(accounts storage.AccountStore, publisher *bus.EventPublisher) *AccountService {
	return &AccountService{
		accounts:  accounts,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// DebitBalance handles InventoryReserved. On success it publishes
// BalanceDebited; on any business failure it publishes
// BalanceDebitFailed carrying the product id and quantity the
// compensation step needs to reverse the reservation.
func (s *AccountService) DebitBalance(ctx context.Context, event *models.InventoryReservedEvent) error {
	ctx, span := util.StartSpan(ctx, "AccountService.DebitBalance", util.OrderAttributes(event.OrderID))
	defer span.End()

	start := time.Now()
	defer func() {
		util.HandlerLatency.WithLabelValues("balance_debit").Observe(time.Since(start).Seconds())
	}()

	result, err := s.accounts.DebitBalanceForOrder(ctx, event.OrderID, event.UserID, event.TotalPrice)
	if err != nil {
		return fmt.Errorf("failed to debit balance: %w", err)
	}

	if result.Duplicate {
		util.DuplicateDeliveriesTotal.WithLabelValues(models.ContextBalanceDebit).Inc()
		s.logger.Info("Duplicate InventoryReserved delivery, ignoring",
			zap.String("order_id", event.OrderID.String()))
		return nil
	}

	if result.Account == nil {
		s.logger.Warn("User not found, publishing debit failure",
			zap.String("order_id", event.OrderID.String()),
			zap.Int64("user_id", event.UserID))
		s.publishDebitFailure(ctx, event, models.ReasonUserNotFound, "User not found")
		return nil
	}

	if !result.Debited {
		s.logger.Warn("Insufficient funds",
			zap.String("order_id", event.OrderID.String()),
			zap.Int64("user_id", result.Account.ID),
			zap.Int64("needed", event.TotalPrice),
			zap.Int64("balance", result.Account.Balance))
		s.publishDebitFailure(ctx, event, models.ReasonInsufficientFunds, "Insufficient funds")
		return nil
	}

	util.BalanceDebitsTotal.Inc()
	s.logger.Info("Balance debited",
		zap.String("order_id", event.OrderID.String()),
		zap.Int64("user_id", result.Account.ID),
		zap.Int64("amount", event.TotalPrice))

	debitedEvent := &models.BalanceDebitedEvent{
		BaseEvent:   models.NewBaseEvent(models.EventTypeBalanceDebited, event.OrderID),
		UserID:      result.Account.ID,
		ProductID:   event.ProductID,
		TotalPrice:  event.TotalPrice,
		ProductName: event.ProductName,
		Username:    event.Username,
	}
	if err := s.publisher.PublishBalanceDebited(ctx, debitedEvent); err != nil {
		s.logger.Error("Failed to publish BalanceDebited event", zap.Error(err))
	}
	return nil
}

func (s *AccountService) publishDebitFailure(ctx context.Context, event *models.InventoryReservedEvent, reason, message string) {
	util.BalanceDebitsFailed.WithLabelValues(reason).Inc()

	failedEvent := &models.BalanceDebitFailedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeBalanceDebitFailed, event.OrderID),
		ProductID: event.ProductID,
		Quantity:  event.Quantity,
		Reason:    reason,
		Message:   message,
		Username:  event.Username,
	}
	if err := s.publisher.PublishBalanceDebitFailed(ctx, failedEvent); err != nil {
		s.logger.Error("Failed to publish BalanceDebitFailed event", zap.Error(err))
	}
}
