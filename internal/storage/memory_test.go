package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-saga/internal/models"
)

func TestReserveStockForOrder(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.PutProduct(models.Product{ID: 1, Name: "laptop", Category: "electronics", Price: 150000, Quantity: 20})

	result, err := store.ReserveStockForOrder(ctx, uuid.New(), 1, 5)
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
	assert.True(t, result.Reserved)
	require.NotNil(t, result.Product)
	assert.Equal(t, 20, result.Product.Quantity, "snapshot reflects the row before the update")

	p, err := store.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 15, p.Quantity)
}

func TestReserveStockForOrderInsufficient(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.PutProduct(models.Product{ID: 1, Name: "laptop", Price: 150000, Quantity: 2})

	result, err := store.ReserveStockForOrder(ctx, uuid.New(), 1, 5)
	require.NoError(t, err)
	assert.False(t, result.Reserved)
	require.NotNil(t, result.Product)
	assert.Equal(t, 2, result.Product.Quantity)

	p, err := store.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Quantity, "failed reservation must not touch stock")
}

func TestReserveStockForOrderExactQuantity(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.PutProduct(models.Product{ID: 1, Name: "laptop", Price: 150000, Quantity: 5})

	result, err := store.ReserveStockForOrder(ctx, uuid.New(), 1, 5)
	require.NoError(t, err)
	assert.True(t, result.Reserved, "quantity equal to stock must succeed")

	p, err := store.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Quantity)
}

func TestReserveStockForOrderMissingProduct(t *testing.T) {
	store := NewMemoryStore()

	result, err := store.ReserveStockForOrder(context.Background(), uuid.New(), 42, 5)
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
	assert.Nil(t, result.Product)
	assert.False(t, result.Reserved)
}

func TestReserveStockForOrderDuplicate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.PutProduct(models.Product{ID: 1, Name: "laptop", Price: 150000, Quantity: 20})
	orderID := uuid.New()

	result, err := store.ReserveStockForOrder(ctx, orderID, 1, 5)
	require.NoError(t, err)
	assert.True(t, result.Reserved)

	result, err = store.ReserveStockForOrder(ctx, orderID, 1, 5)
	require.NoError(t, err)
	assert.True(t, result.Duplicate)
	assert.False(t, result.Reserved)

	p, err := store.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 15, p.Quantity, "the duplicate must not decrement again")
}

func TestReserveStockForOrderConcurrentDeliveries(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.PutProduct(models.Product{ID: 1, Name: "laptop", Price: 150000, Quantity: 100})
	orderID := uuid.New()

	const deliveries = 50
	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := store.ReserveStockForOrder(ctx, orderID, 1, 5)
			assert.NoError(t, err)
			if result.Reserved {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins)
	p, err := store.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 95, p.Quantity)
}

func TestSagaActionsAreIndependentPerOrder(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.PutProduct(models.Product{ID: 1, Name: "laptop", Price: 150000, Quantity: 20})
	store.PutAccount(models.Account{ID: 1, Username: "alice", Balance: 1000000})
	orderID := uuid.New()

	reserve, err := store.ReserveStockForOrder(ctx, orderID, 1, 5)
	require.NoError(t, err)
	assert.True(t, reserve.Reserved)

	// Same order, different logical actions: each gets its own mark.
	debit, err := store.DebitBalanceForOrder(ctx, orderID, 1, 750000)
	require.NoError(t, err)
	assert.True(t, debit.Debited)

	release, err := store.ReleaseStockForOrder(ctx, orderID, 1, 5)
	require.NoError(t, err)
	assert.True(t, release.Released)

	// A different order does not collide either.
	other, err := store.ReserveStockForOrder(ctx, uuid.New(), 1, 5)
	require.NoError(t, err)
	assert.False(t, other.Duplicate)
}

func TestReleaseStockForOrder(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.PutProduct(models.Product{ID: 1, Name: "laptop", Price: 150000, Quantity: 15})
	orderID := uuid.New()

	result, err := store.ReleaseStockForOrder(ctx, orderID, 1, 5)
	require.NoError(t, err)
	assert.True(t, result.Released)

	p, err := store.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 20, p.Quantity)

	// Redelivered compensation is absorbed by the mark.
	result, err = store.ReleaseStockForOrder(ctx, orderID, 1, 5)
	require.NoError(t, err)
	assert.True(t, result.Duplicate)

	p, err = store.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 20, p.Quantity)
}

func TestReleaseStockForOrderMissingProduct(t *testing.T) {
	store := NewMemoryStore()

	result, err := store.ReleaseStockForOrder(context.Background(), uuid.New(), 42, 5)
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
	assert.False(t, result.Released)
}

func TestDebitBalanceForOrder(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.PutAccount(models.Account{ID: 1, Username: "alice", Balance: 1000000})
	orderID := uuid.New()

	result, err := store.DebitBalanceForOrder(ctx, orderID, 1, 750000)
	require.NoError(t, err)
	assert.True(t, result.Debited)
	require.NotNil(t, result.Account)
	assert.EqualValues(t, 1000000, result.Account.Balance, "snapshot reflects the row before the update")

	a, err := store.GetAccount(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 250000, a.Balance)

	result, err = store.DebitBalanceForOrder(ctx, orderID, 1, 750000)
	require.NoError(t, err)
	assert.True(t, result.Duplicate)

	a, err = store.GetAccount(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 250000, a.Balance, "balance must be debited exactly once")
}

func TestDebitBalanceForOrderInsufficient(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.PutAccount(models.Account{ID: 1, Username: "alice", Balance: 100})

	result, err := store.DebitBalanceForOrder(ctx, uuid.New(), 1, 750000)
	require.NoError(t, err)
	assert.False(t, result.Debited)
	require.NotNil(t, result.Account)

	a, err := store.GetAccount(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 100, a.Balance, "failed debit must not touch balance")
}

func TestDebitBalanceForOrderExactAmount(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.PutAccount(models.Account{ID: 1, Username: "alice", Balance: 750000})

	result, err := store.DebitBalanceForOrder(ctx, uuid.New(), 1, 750000)
	require.NoError(t, err)
	assert.True(t, result.Debited, "amount equal to balance must succeed")

	a, err := store.GetAccount(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 0, a.Balance)
}

func TestDebitBalanceForOrderMissingUser(t *testing.T) {
	store := NewMemoryStore()

	result, err := store.DebitBalanceForOrder(context.Background(), uuid.New(), 42, 750000)
	require.NoError(t, err)
	assert.Nil(t, result.Account)
	assert.False(t, result.Debited)
}

func TestLookupByName(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.PutProduct(models.Product{ID: 1, Name: "laptop", Price: 150000, Quantity: 20})
	store.PutAccount(models.Account{ID: 7, Username: "alice", Balance: 1000000})

	p, err := store.GetProductByName(ctx, "laptop")
	require.NoError(t, err)
	assert.EqualValues(t, 1, p.ID)

	a, err := store.GetAccountByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 7, a.ID)

	_, err = store.GetProductByName(ctx, "toaster")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.GetAccountByUsername(ctx, "bob")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransitionStatus(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	order := &models.Order{
		ID:        uuid.New(),
		UserID:    1,
		ProductID: 1,
		Quantity:  5,
		Status:    models.OrderStatusPending,
		Username:  "alice",
	}
	require.NoError(t, store.CreateOrder(ctx, order))

	ok, err := store.TransitionStatus(ctx, order.ID, models.OrderStatusCompleted)
	require.NoError(t, err)
	assert.True(t, ok)

	// A terminal order never transitions again, not even to the same state.
	ok, err = store.TransitionStatus(ctx, order.ID, models.OrderStatusFailed)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.TransitionStatus(ctx, order.ID, models.OrderStatusCompleted)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, got.Status)
}

func TestTransitionStatusUnknownOrder(t *testing.T) {
	store := NewMemoryStore()
	ok, err := store.TransitionStatus(context.Background(), uuid.New(), models.OrderStatusFailed)
	require.NoError(t, err)
	assert.False(t, ok)
}
