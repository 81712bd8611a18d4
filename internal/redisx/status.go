package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

type StatusEntry struct {
	Status    orders.Status `json:"status"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// StatusCache keeps the latest status of each order for fast reads. It is
// fed as an event sink; the order store stays the source of truth.
type StatusCache struct {
	R   redis.Cmdable
	TTL time.Duration
}

func NewStatusCache(r redis.Cmdable) *StatusCache {
	return &StatusCache{R: r, TTL: TTLStatusCache}
}

func (c *StatusCache) Notify(ctx context.Context, events []orders.Event) error {
	var errs []error
	for _, ev := range events {
		st := orders.StatusAfter(ev)
		if st == "" {
			continue
		}
		if err := c.Put(ctx, ev.OrderRef(), StatusEntry{Status: st, UpdatedAt: ev.OccurredAt()}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *StatusCache) Put(ctx context.Context, orderID string, e StatusEntry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := c.R.Set(ctx, fmt.Sprintf(KeyOrderStatus, orderID), b, c.TTL).Err(); err != nil {
		return fmt.Errorf("cache status of %s: %w", orderID, err)
	}
	return nil
}

// Get returns the cached entry; ok is false on a miss.
func (c *StatusCache) Get(ctx context.Context, orderID string) (e StatusEntry, ok bool, err error) {
	s, err := c.R.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Result()
	if errors.Is(err, redis.Nil) {
		return StatusEntry{}, false, nil
	}
	if err != nil {
		return StatusEntry{}, false, err
	}
	if err := json.Unmarshal([]byte(s), &e); err != nil {
		return StatusEntry{}, false, fmt.Errorf("decode cached status of %s: %w", orderID, err)
	}
	return e, true, nil
}
