package destination

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var (
	ErrNotFound = errors.New("shipping destination not found")
)

// Repository provides access to shipping destination rows.
type Repository interface {
	Get(ctx context.Context, countryID string) (Destination, error)
	List(ctx context.Context) ([]Destination, error)
}

// InMemoryRepository for tests
type InMemoryRepository struct {
	mu   sync.RWMutex
	data map[string]Destination
}

func NewInMemoryRepository(seed []Destination) *InMemoryRepository {
	r := &InMemoryRepository{data: make(map[string]Destination, len(seed))}
	for _, d := range seed {
		r.data[d.CountryID] = d
	}
	return r
}

func (r *InMemoryRepository) Get(_ context.Context, countryID string) (Destination, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d, ok := r.data[countryID]; ok {
		return d, nil
	}
	return Destination{}, ErrNotFound
}

func (r *InMemoryRepository) List(_ context.Context) ([]Destination, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Destination, 0, len(r.data))
	for _, d := range r.data {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
