package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"order-saga/internal/models"
)

// Store is the Postgres implementation of all three domain stores.
type Store struct {
	db *sqlx.DB
}

// NewStore connects to Postgres and configures the pool
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetProduct retrieves a product by ID
func (s *Store) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductByName retrieves a product by its unique name
func (s *Store) GetProductByName(ctx context.Context, name string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE name = $1", name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListProducts retrieves all products
func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products, "SELECT * FROM products ORDER BY id")
	return products, err
}

// markProcessed inserts the order's action record inside tx. ON
// CONFLICT DO NOTHING turns the uniqueness violation of a duplicate
// into zero affected rows, which is how the race between two concurrent
// deliveries is decided.
func markProcessed(ctx context.Context, tx *sqlx.Tx, orderID uuid.UUID, actionContext string) (bool, error) {
	res, err := tx.NamedExecContext(ctx,
		"INSERT INTO processed_actions (order_id, context, processed_at) VALUES (:order_id, :context, NOW()) ON CONFLICT (order_id, context) DO NOTHING",
		models.ProcessedAction{OrderID: orderID, Context: actionContext})
	if err != nil {
		return false, fmt.Errorf("failed to mark action processed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// ReserveStockForOrder runs the INVENTORY_RESERVE mark and the
// compare-and-decrement in one transaction. Rolling back on any error
// leaves neither, so a redelivery retries the whole action instead of
// finding a mark with no reservation behind it.
func (s *Store) ReserveStockForOrder(ctx context.Context, orderID uuid.UUID, id int64, qty int) (*ReserveResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	first, err := markProcessed(ctx, tx, orderID, models.ContextInventoryReserve)
	if err != nil {
		return nil, err
	}
	if !first {
		return &ReserveResult{Duplicate: true}, nil
	}

	var product models.Product
	err = tx.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit: %w", err)
		}
		return &ReserveResult{}, nil
	}
	if err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE products SET quantity = quantity - $1 WHERE id = $2 AND quantity >= $1",
		qty, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return &ReserveResult{Product: &product, Reserved: affected == 1}, nil
}

// ReleaseStockForOrder runs the INVENTORY_RELEASE mark and the stock
// increment in one transaction.
func (s *Store) ReleaseStockForOrder(ctx context.Context, orderID uuid.UUID, id int64, qty int) (*ReleaseResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	first, err := markProcessed(ctx, tx, orderID, models.ContextInventoryRelease)
	if err != nil {
		return nil, err
	}
	if !first {
		return &ReleaseResult{Duplicate: true}, nil
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE products SET quantity = quantity + $1 WHERE id = $2",
		qty, id)
	if err != nil {
		return nil, fmt.Errorf("failed to release stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return &ReleaseResult{Released: affected == 1}, nil
}

// GetAccount retrieves an account by user ID
func (s *Store) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	var account models.Account
	err := s.db.GetContext(ctx, &account, "SELECT * FROM accounts WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetAccountByUsername retrieves an account by username
func (s *Store) GetAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	var account models.Account
	err := s.db.GetContext(ctx, &account, "SELECT * FROM accounts WHERE username = $1", username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %q: %w", username, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// ListAccounts retrieves all accounts
func (s *Store) ListAccounts(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	err := s.db.SelectContext(ctx, &accounts, "SELECT * FROM accounts ORDER BY id")
	return accounts, err
}

// DebitBalanceForOrder runs the BALANCE_DEBIT mark and the
// compare-and-decrement in one transaction.
func (s *Store) DebitBalanceForOrder(ctx context.Context, orderID uuid.UUID, id int64, amount int64) (*DebitResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	first, err := markProcessed(ctx, tx, orderID, models.ContextBalanceDebit)
	if err != nil {
		return nil, err
	}
	if !first {
		return &DebitResult{Duplicate: true}, nil
	}

	var account models.Account
	err = tx.GetContext(ctx, &account, "SELECT * FROM accounts WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit: %w", err)
		}
		return &DebitResult{}, nil
	}
	if err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE accounts SET balance = balance - $1 WHERE id = $2 AND balance >= $1",
		amount, id)
	if err != nil {
		return nil, fmt.Errorf("failed to debit balance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return &DebitResult{Account: &account, Debited: affected == 1}, nil
}

// CreateOrder inserts a new PENDING order
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (id, user_id, product_id, quantity, status, username)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		order.ID, order.UserID, order.ProductID, order.Quantity, order.Status, order.Username,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
}

// GetOrder retrieves an order by ID
func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrders retrieves all orders, newest first
func (s *Store) ListOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders, "SELECT * FROM orders ORDER BY created_at DESC")
	return orders, err
}

// TransitionStatus resolves the order if and only if it is still
// PENDING. The status guard in the WHERE clause is what makes the
// terminal transition happen exactly once under racing deliveries.
func (s *Store) TransitionStatus(ctx context.Context, id uuid.UUID, status string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3",
		status, id, models.OrderStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to transition order status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}
