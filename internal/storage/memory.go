package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"order-saga/internal/models"
)

type actionKey struct {
	orderID uuid.UUID
	context string
}

// MemoryStore is the in-process implementation of the domain stores,
// used by tests and the memory-bus deployment. Each saga action runs
// its mark and its mutation under one mutex hold, standing in for the
// database transaction.
type MemoryStore struct {
	mu       sync.Mutex
	products map[int64]*models.Product
	accounts map[int64]*models.Account
	orders   map[uuid.UUID]*models.Order
	actions  map[actionKey]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[int64]*models.Product),
		accounts: make(map[int64]*models.Account),
		orders:   make(map[uuid.UUID]*models.Order),
		actions:  make(map[actionKey]time.Time),
	}
}

// markProcessed must be called with the mutex held.
func (s *MemoryStore) markProcessed(orderID uuid.UUID, actionContext string) bool {
	key := actionKey{orderID: orderID, context: actionContext}
	if _, exists := s.actions[key]; exists {
		return false
	}
	s.actions[key] = time.Now()
	return true
}

// PutProduct inserts or replaces a product record
func (s *MemoryStore) PutProduct(p models.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := p
	s.products[p.ID] = &cp
}

// PutAccount inserts or replaces an account record
func (s *MemoryStore) PutAccount(a models.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := a
	s.accounts[a.ID] = &cp
}

func (s *MemoryStore) GetProduct(_ context.Context, id int64) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) GetProductByName(_ context.Context, name string) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if p.Name == name {
			cp := *p
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("product %q: %w", name, ErrNotFound)
}

func (s *MemoryStore) ListProducts(_ context.Context) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) ReserveStockForOrder(_ context.Context, orderID uuid.UUID, id int64, qty int) (*ReserveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.markProcessed(orderID, models.ContextInventoryReserve) {
		return &ReserveResult{Duplicate: true}, nil
	}
	p, ok := s.products[id]
	if !ok {
		return &ReserveResult{}, nil
	}
	cp := *p
	if p.Quantity < qty {
		return &ReserveResult{Product: &cp}, nil
	}
	p.Quantity -= qty
	return &ReserveResult{Product: &cp, Reserved: true}, nil
}

func (s *MemoryStore) ReleaseStockForOrder(_ context.Context, orderID uuid.UUID, id int64, qty int) (*ReleaseResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.markProcessed(orderID, models.ContextInventoryRelease) {
		return &ReleaseResult{Duplicate: true}, nil
	}
	p, ok := s.products[id]
	if !ok {
		return &ReleaseResult{}, nil
	}
	p.Quantity += qty
	return &ReleaseResult{Released: true}, nil
}

func (s *MemoryStore) GetAccount(_ context.Context, id int64) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %d: %w", id, ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) GetAccountByUsername(_ context.Context, username string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Username == username {
			cp := *a
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("account %q: %w", username, ErrNotFound)
}

func (s *MemoryStore) ListAccounts(_ context.Context) ([]models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) DebitBalanceForOrder(_ context.Context, orderID uuid.UUID, id int64, amount int64) (*DebitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.markProcessed(orderID, models.ContextBalanceDebit) {
		return &DebitResult{Duplicate: true}, nil
	}
	a, ok := s.accounts[id]
	if !ok {
		return &DebitResult{}, nil
	}
	cp := *a
	if a.Balance < amount {
		return &DebitResult{Account: &cp}, nil
	}
	a.Balance -= amount
	return &DebitResult{Account: &cp, Debited: true}, nil
}

func (s *MemoryStore) CreateOrder(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[order.ID]; exists {
		return fmt.Errorf("order %s already exists", order.ID)
	}
	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now
	cp := *order
	s.orders[order.ID] = &cp
	return nil
}

func (s *MemoryStore) GetOrder(_ context.Context, id uuid.UUID) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	cp := *o
	return &cp, nil
}

func (s *MemoryStore) ListOrders(_ context.Context) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) TransitionStatus(_ context.Context, id uuid.UUID, status string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return false, nil
	}
	if o.Status != models.OrderStatusPending {
		return false, nil
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	return true, nil
}
