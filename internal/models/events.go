package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event types (the discriminator for the closed event union)
const (
	EventTypeOrderCreated               = "ORDER_CREATED"
	EventTypeInventoryReserved          = "INVENTORY_RESERVED"
	EventTypeInventoryReservationFailed = "INVENTORY_RESERVATION_FAILED"
	EventTypeBalanceDebited             = "BALANCE_DEBITED"
	EventTypeBalanceDebitFailed         = "BALANCE_DEBIT_FAILED"
)

// Event is implemented by every saga event variant.
type Event interface {
	Type() string
	Correlation() uuid.UUID
}

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	OrderID   uuid.UUID `json:"order_id"`
}

func (e BaseEvent) Type() string           { return e.EventType }
func (e BaseEvent) Correlation() uuid.UUID { return e.OrderID }

// NewBaseEvent stamps a fresh event id for the given type and order.
func NewBaseEvent(eventType string, orderID uuid.UUID) BaseEvent {
	return BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		OrderID:   orderID,
	}
}

// OrderCreatedEvent published by the order domain when an order is accepted
type OrderCreatedEvent struct {
	BaseEvent
	Timestamp time.Time `json:"timestamp"`
	ProductID int64     `json:"product_id"`
	UserID    int64     `json:"user_id"`
	Quantity  int       `json:"quantity"`
	Username  string    `json:"username"`
}

// InventoryReservedEvent published when stock was decremented for an order
type InventoryReservedEvent struct {
	BaseEvent
	UserID      int64  `json:"user_id"`
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	TotalPrice  int64  `json:"total_price"`
	Username    string `json:"username"`
}

// InventoryReservationFailedEvent published when stock could not be reserved
type InventoryReservationFailedEvent struct {
	BaseEvent
	ProductID int64  `json:"product_id"`
	Reason    string `json:"reason"`
	Message   string `json:"message"`
	Username  string `json:"username"`
}

// BalanceDebitedEvent published when the order total was debited
type BalanceDebitedEvent struct {
	BaseEvent
	UserID      int64  `json:"user_id"`
	ProductID   int64  `json:"product_id"`
	TotalPrice  int64  `json:"total_price"`
	ProductName string `json:"product_name"`
	Username    string `json:"username"`
}

// BalanceDebitFailedEvent published when the debit failed. It carries the
// product id and quantity so the compensation step can reverse the
// reservation without calling back into the account domain.
type BalanceDebitFailedEvent struct {
	BaseEvent
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Reason    string `json:"reason"`
	Message   string `json:"message"`
	Username  string `json:"username"`
}

// DecodeEvent unmarshals a wire payload into its concrete variant by
// switching on the event_type tag. Unknown tags are an error: the union
// is closed.
func DecodeEvent(data []byte) (Event, error) {
	var base BaseEvent
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch base.EventType {
	case EventTypeOrderCreated:
		var event OrderCreatedEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal OrderCreated event: %w", err)
		}
		return &event, nil

	case EventTypeInventoryReserved:
		var event InventoryReservedEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal InventoryReserved event: %w", err)
		}
		return &event, nil

	case EventTypeInventoryReservationFailed:
		var event InventoryReservationFailedEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal InventoryReservationFailed event: %w", err)
		}
		return &event, nil

	case EventTypeBalanceDebited:
		var event BalanceDebitedEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal BalanceDebited event: %w", err)
		}
		return &event, nil

	case EventTypeBalanceDebitFailed:
		var event BalanceDebitFailedEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal BalanceDebitFailed event: %w", err)
		}
		return &event, nil

	default:
		return nil, fmt.Errorf("unknown event type: %q", base.EventType)
	}
}
