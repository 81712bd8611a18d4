package customers

import (
	"context"
	"fmt"
	"sync"
)

type Store interface {
	Save(ctx context.Context, c Customer) error
	FindByID(ctx context.Context, id string) (Customer, error)
	FindByEmail(ctx context.Context, email string) (Customer, error)
	Update(ctx context.Context, c Customer) error
	Exists(ctx context.Context, id string) (bool, error)
}

// MemoryStore keeps customers by id with a secondary email index.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]Customer
	byEmail map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]Customer), byEmail: make(map[string]string)}
}

func (s *MemoryStore) Save(_ context.Context, c Customer) error {
	if c.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidCustomer)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if owner, ok := s.byEmail[c.Email]; ok && owner != c.ID {
		return fmt.Errorf("%w: %s", ErrEmailTaken, c.Email)
	}
	s.put(c)
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[id]
	if !ok {
		return Customer{}, fmt.Errorf("%w: %s", ErrCustomerNotFound, id)
	}
	return c, nil
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return Customer{}, fmt.Errorf("%w: email %s", ErrCustomerNotFound, email)
	}
	return s.byID[id], nil
}

func (s *MemoryStore) Update(_ context.Context, c Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[c.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrCustomerNotFound, c.ID)
	}
	if owner, ok := s.byEmail[c.Email]; ok && owner != c.ID {
		return fmt.Errorf("%w: %s", ErrEmailTaken, c.Email)
	}
	s.put(c)
	return nil
}

func (s *MemoryStore) Exists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byID[id]
	return ok, nil
}

// put stores c and re-indexes its email. Callers hold mu.
func (s *MemoryStore) put(c Customer) {
	if prev, ok := s.byID[c.ID]; ok && prev.Email != c.Email {
		delete(s.byEmail, prev.Email)
	}
	s.byID[c.ID] = c
	s.byEmail[c.Email] = c.ID
}
