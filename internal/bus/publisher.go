package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"order-saga/internal/models"
)

// EventPublisher handles publishing domain events to their routing keys
type EventPublisher struct {
	bus Bus
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(b Bus) *EventPublisher {
	return &EventPublisher{bus: b}
}

// PublishOrderCreated publishes OrderCreated to order.created
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return ep.publish(ctx, KeyOrderCreated, event)
}

// PublishInventoryReserved publishes InventoryReserved to inventory.reserved
func (ep *EventPublisher) PublishInventoryReserved(ctx context.Context, event *models.InventoryReservedEvent) error {
	return ep.publish(ctx, KeyInventoryReserved, event)
}

// PublishInventoryReservationFailed publishes InventoryReservationFailed to inventory.failed
func (ep *EventPublisher) PublishInventoryReservationFailed(ctx context.Context, event *models.InventoryReservationFailedEvent) error {
	return ep.publish(ctx, KeyInventoryFailed, event)
}

// PublishBalanceDebited publishes BalanceDebited to balance.success
func (ep *EventPublisher) PublishBalanceDebited(ctx context.Context, event *models.BalanceDebitedEvent) error {
	return ep.publish(ctx, KeyBalanceSuccess, event)
}

// PublishBalanceDebitFailed publishes BalanceDebitFailed to balance.failed
func (ep *EventPublisher) PublishBalanceDebitFailed(ctx context.Context, event *models.BalanceDebitFailedEvent) error {
	return ep.publish(ctx, KeyBalanceFailed, event)
}

func (ep *EventPublisher) publish(ctx context.Context, routingKey string, event models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := ep.bus.Publish(ctx, routingKey, payload); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type(), err)
	}
	return nil
}
