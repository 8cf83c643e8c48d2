package order

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines persistence operations for orders and their items.
type Repository interface {
	// GetOpen returns the customer's unpaid order or ErrNotFound.
	GetOpen(ctx context.Context, customerID int) (Order, error)
	// GetOrCreateOpen returns the customer's unpaid order, creating it if absent.
	GetOrCreateOpen(ctx context.Context, customerID int) (Order, error)
	UpdateShipping(ctx context.Context, orderID int, s Shipping) (Order, error)
	// SetPaymentSession records the provider session opened for the open order.
	SetPaymentSession(ctx context.Context, orderID int, sessionID string) (Order, error)
	Items(ctx context.Context, orderID int) ([]Item, error)
	// ReplaceItems deletes every item of the order and inserts items in their
	// place, atomically. Any recorded payment session is cleared.
	ReplaceItems(ctx context.Context, orderID int, items []Item) ([]Item, error)
	// Finalize marks the order paid and takes each item's quantity out of
	// stock, atomically. A short product aborts everything with an
	// *InventoryConflictError.
	Finalize(ctx context.Context, orderID int) error
}

// StockLedger is the stock side the in-memory repository finalizes against.
type StockLedger interface {
	DecrementAll(want map[int]int) (conflictID int, ok bool)
}

// InMemoryRepository is used for tests and local scenarios.
type InMemoryRepository struct {
	mu         sync.RWMutex
	stock      StockLedger
	orders     map[int]Order
	items      map[int][]Item
	nextID     int
	nextItemID int
}

func NewInMemoryRepository(stock StockLedger) *InMemoryRepository {
	return &InMemoryRepository{
		stock:      stock,
		orders:     map[int]Order{},
		items:      map[int][]Item{},
		nextID:     1,
		nextItemID: 1,
	}
}

func (r *InMemoryRepository) GetOpen(_ context.Context, customerID int) (Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.open(customerID)
}

func (r *InMemoryRepository) GetOrCreateOpen(_ context.Context, customerID int) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, err := r.open(customerID); err == nil {
		return o, nil
	}
	now := time.Now().UTC()
	o := Order{
		ID:         r.nextID,
		Reference:  uuid.NewString(),
		CustomerID: customerID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	r.nextID++
	r.orders[o.ID] = o
	return o, nil
}

func (r *InMemoryRepository) UpdateShipping(_ context.Context, orderID int, s Shipping) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok || o.Paid {
		return Order{}, ErrNotFound
	}
	o.Shipping = s
	o.UpdatedAt = time.Now().UTC()
	r.orders[orderID] = o
	return o, nil
}

func (r *InMemoryRepository) SetPaymentSession(_ context.Context, orderID int, sessionID string) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok || o.Paid {
		return Order{}, ErrNotFound
	}
	o.PaymentSessionID = sessionID
	o.UpdatedAt = time.Now().UTC()
	r.orders[orderID] = o
	return o, nil
}

func (r *InMemoryRepository) Items(_ context.Context, orderID int) ([]Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Item, len(r.items[orderID]))
	copy(out, r.items[orderID])
	return out, nil
}

func (r *InMemoryRepository) ReplaceItems(_ context.Context, orderID int, items []Item) ([]Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	o.PaymentSessionID = ""
	r.orders[orderID] = o

	out := make([]Item, 0, len(items))
	for _, it := range items {
		it.ID = r.nextItemID
		it.OrderID = orderID
		r.nextItemID++
		out = append(out, it)
	}
	r.items[orderID] = out

	cp := make([]Item, len(out))
	copy(cp, out)
	return cp, nil
}

func (r *InMemoryRepository) Finalize(_ context.Context, orderID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	if o.Paid {
		return ErrAlreadyPaid
	}

	want := map[int]int{}
	for _, it := range r.items[orderID] {
		want[it.ProductID] += it.Quantity
	}
	if id, ok := r.stock.DecrementAll(want); !ok {
		return &InventoryConflictError{ProductID: id, Requested: want[id]}
	}

	o.Paid = true
	o.UpdatedAt = time.Now().UTC()
	r.orders[orderID] = o
	return nil
}

// Orders lists every order of a customer, oldest first.
func (r *InMemoryRepository) Orders(customerID int) []Order {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Order, 0)
	for _, o := range r.orders {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *InMemoryRepository) open(customerID int) (Order, error) {
	for _, o := range r.orders {
		if o.CustomerID == customerID && !o.Paid {
			return o, nil
		}
	}
	return Order{}, ErrNotFound
}
