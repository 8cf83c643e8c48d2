package product

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrNotFound = errors.New("product not found")
)

// Repository is the read side of the catalogue used by the cart and checkout.
type Repository interface {
	GetByID(ctx context.Context, id int) (Product, error)
	// ListByIDs returns the products whose id is in ids, in the order of ids.
	// Unknown ids are left out.
	ListByIDs(ctx context.Context, ids []int) ([]Product, error)
}

// InMemoryRepository is used for tests and local scenarios.
type InMemoryRepository struct {
	mu      sync.RWMutex
	storage []Product
}

func NewInMemoryRepository(seed []Product) *InMemoryRepository {
	r := &InMemoryRepository{storage: make([]Product, 0, len(seed))}
	r.storage = append(r.storage, seed...)
	return r
}

func (r *InMemoryRepository) GetByID(_ context.Context, id int) (Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.storage {
		if p.ID == id {
			return p, nil
		}
	}
	return Product{}, ErrNotFound
}

func (r *InMemoryRepository) ListByIDs(_ context.Context, ids []int) ([]Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Product, 0, len(ids))
	for _, id := range ids {
		for _, p := range r.storage {
			if p.ID == id {
				out = append(out, p)
				break
			}
		}
	}
	return out, nil
}

// Delete drops a product, simulating a listing removed while still sitting in carts.
func (r *InMemoryRepository) Delete(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.storage {
		if r.storage[i].ID == id {
			r.storage = append(r.storage[:i], r.storage[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// DecrementAll takes want[productID] units from each product, all or nothing.
// When a product is missing or short, nothing changes and its id is returned
// with ok=false.
func (r *InMemoryRepository) DecrementAll(want map[int]int) (conflictID int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	index := make(map[int]int, len(r.storage))
	for i, p := range r.storage {
		index[p.ID] = i
	}
	for id, qty := range want {
		i, found := index[id]
		if !found || r.storage[i].NumInStock < qty {
			return id, false
		}
	}
	for id, qty := range want {
		r.storage[index[id]].NumInStock -= qty
	}
	return 0, true
}
