// Package storage holds the per-domain keyed stores. Every mutation a
// saga handler performs commits atomically with its processed_actions
// mark, so a handler either fully ran for an order or left no trace for
// the redelivery to find; the stores never expose a read-then-write
// path for stock, balance or order status.
package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"order-saga/internal/models"
)

// ErrNotFound is returned when a referenced product, account or order
// does not exist.
var ErrNotFound = errors.New("not found")

// ReserveResult reports what a reservation attempt did.
type ReserveResult struct {
	// Duplicate means the action already ran for this order; nothing
	// was touched this time.
	Duplicate bool
	// Product is the row as it stood before the update, nil when the
	// product does not exist.
	Product  *models.Product
	Reserved bool
}

// ReleaseResult reports what a compensation attempt did.
type ReleaseResult struct {
	Duplicate bool
	// Released is false when the product no longer exists.
	Released bool
}

// DebitResult reports what a debit attempt did.
type DebitResult struct {
	Duplicate bool
	// Account is the row as it stood before the update, nil when the
	// user does not exist.
	Account *models.Account
	Debited bool
}

// ProductStore is the product domain's stock record store.
type ProductStore interface {
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	GetProductByName(ctx context.Context, name string) (*models.Product, error)
	ListProducts(ctx context.Context) ([]models.Product, error)

	// ReserveStockForOrder decrements the product's quantity if at
	// least qty is available, recording the action under the order's
	// INVENTORY_RESERVE mark in the same commit. An error means
	// neither happened and the delivery should be retried.
	ReserveStockForOrder(ctx context.Context, orderID uuid.UUID, id int64, qty int) (*ReserveResult, error)

	// ReleaseStockForOrder reverses an earlier reservation, recording
	// the action under the order's INVENTORY_RELEASE mark in the same
	// commit.
	ReleaseStockForOrder(ctx context.Context, orderID uuid.UUID, id int64, qty int) (*ReleaseResult, error)
}

// AccountStore is the user domain's balance record store.
type AccountStore interface {
	GetAccount(ctx context.Context, id int64) (*models.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*models.Account, error)
	ListAccounts(ctx context.Context) ([]models.Account, error)

	// DebitBalanceForOrder decrements the account's balance if it
	// covers amount, recording the action under the order's
	// BALANCE_DEBIT mark in the same commit.
	DebitBalanceForOrder(ctx context.Context, orderID uuid.UUID, id int64, amount int64) (*DebitResult, error)
}

// OrderStore is the order domain's store.
type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context) ([]models.Order, error)

	// TransitionStatus moves the order from PENDING to the given
	// terminal status, reporting whether the transition happened. An
	// order already in a terminal state is left untouched. The status
	// guard doubles as the tracker's idempotency gate, so there is no
	// separate mark.
	TransitionStatus(ctx context.Context, id uuid.UUID, status string) (bool, error)
}
