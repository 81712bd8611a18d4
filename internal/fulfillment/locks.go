package fulfillment

import (
	"context"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

const DefaultLockShards = 256

// lockTable is a fixed array of binary semaphores indexed by key hash. Slots
// are never created or removed after construction, so every caller for a key
// always contends on the same slot. Distinct keys may share a slot.
type lockTable struct {
	slots []chan struct{}
}

func newLockTable(n int) *lockTable {
	if n <= 0 {
		n = DefaultLockShards
	}
	t := &lockTable{slots: make([]chan struct{}, n)}
	for i := range t.slots {
		t.slots[i] = make(chan struct{}, 1)
	}
	return t
}

func (t *lockTable) slot(key string) chan struct{} {
	return t.slots[xxhash.Sum64String(key)%uint64(len(t.slots))]
}

// lock blocks until the key's slot is free or ctx is done.
func (t *lockTable) lock(ctx context.Context, key string) (func(), error) {
	s := t.slot(key)
	select {
	case s <- struct{}{}:
		return func() { <-s }, nil
	default:
	}
	select {
	case s <- struct{}{}:
		return func() { <-s }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %v", ErrLockTimeout, key, ctx.Err())
	}
}
