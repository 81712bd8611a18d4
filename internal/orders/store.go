package orders

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Store persists orders. Implementations must not share *Order values with
// callers: every read returns a copy the caller may mutate freely.
type Store interface {
	Save(ctx context.Context, o *Order) error
	FindByID(ctx context.Context, id string) (*Order, error)
	FindByCustomer(ctx context.Context, customerID string) ([]*Order, error)
	FindPending(ctx context.Context) ([]*Order, error)
	Update(ctx context.Context, o *Order) error
	Delete(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)
}

// MemoryStore is a thread-safe in-process Store.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]*Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]*Order)}
}

func (s *MemoryStore) Save(_ context.Context, o *Order) error {
	if o == nil {
		return fmt.Errorf("%w: nil order", ErrInvalidOrder)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[o.ID()] = stored(o)
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.data[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	return o.Clone(), nil
}

func (s *MemoryStore) FindByCustomer(_ context.Context, customerID string) ([]*Order, error) {
	return s.filter(func(o *Order) bool { return o.CustomerID() == customerID }), nil
}

func (s *MemoryStore) FindPending(_ context.Context) ([]*Order, error) {
	return s.filter(func(o *Order) bool { return o.Status() == StatusPending }), nil
}

func (s *MemoryStore) filter(keep func(*Order) bool) []*Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Order
	for _, o := range s.data {
		if keep(o) {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt().Equal(out[j].CreatedAt()) {
			return out[i].ID() < out[j].ID()
		}
		return out[i].CreatedAt().Before(out[j].CreatedAt())
	})
	return out
}

func (s *MemoryStore) Update(_ context.Context, o *Order) error {
	if o == nil {
		return fmt.Errorf("%w: nil order", ErrInvalidOrder)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[o.ID()]; !ok {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, o.ID())
	}
	s.data[o.ID()] = stored(o)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.data, id)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Exists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[id]
	return ok, nil
}

// stored copies an order for storage. Pending events belong to the caller
// and are not persisted.
func stored(o *Order) *Order {
	c := o.Clone()
	c.ClearEvents()
	return c
}
