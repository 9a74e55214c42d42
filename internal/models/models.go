package models

import (
	"time"

	"github.com/google/uuid"
)

// Product represents a product and its available stock
type Product struct {
	ID       int64  `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	Category string `db:"category" json:"category"`
	Price    int64  `db:"price" json:"price"`
	Quantity int    `db:"quantity" json:"quantity"`
}

// Account represents a user and their balance
type Account struct {
	ID       int64  `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
	Balance  int64  `db:"balance" json:"balance"`
}

// Order represents a customer order moving through the saga
type Order struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	ProductID int64     `db:"product_id" json:"product_id"`
	Quantity  int       `db:"quantity" json:"quantity"`
	Status    string    `db:"status" json:"status"`
	Username  string    `db:"username" json:"username"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Order statuses. PENDING is the only non-terminal state.
const (
	OrderStatusPending   = "PENDING"
	OrderStatusCompleted = "COMPLETED"
	OrderStatusFailed    = "FAILED"
)

// ProcessedAction records that a logical saga action already ran for an
// order. The (order_id, context) pair is unique; inserting it is the
// idempotency gate for every handler.
type ProcessedAction struct {
	OrderID     uuid.UUID `db:"order_id"`
	Context     string    `db:"context"`
	ProcessedAt time.Time `db:"processed_at"`
}

// Idempotency contexts, one per logical saga action
const (
	ContextInventoryReserve = "INVENTORY_RESERVE"
	ContextInventoryRelease = "INVENTORY_RELEASE"
	ContextBalanceDebit     = "BALANCE_DEBIT"
)

// Failure reasons carried by failure events
const (
	ReasonProductNotFound   = "PRODUCT_NOT_FOUND"
	ReasonInsufficientStock = "INSUFFICIENT_STOCK"
	ReasonUserNotFound      = "USER_NOT_FOUND"
	ReasonInsufficientFunds = "INSUFFICIENT_FUNDS"
)
