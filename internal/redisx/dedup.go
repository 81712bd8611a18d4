package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Dedup records consumed envelope ids per consumer scope.
type Dedup struct {
	R   redis.Cmdable
	TTL time.Duration
}

func NewDedup(r redis.Cmdable) *Dedup {
	return &Dedup{R: r, TTL: TTLDedup}
}

func (d *Dedup) Seen(ctx context.Context, scope, eventID string) (bool, error) {
	return Exists(ctx, d.R, fmt.Sprintf(KeyDedup, scope, eventID))
}

func (d *Dedup) Mark(ctx context.Context, scope, eventID string) error {
	return d.R.Set(ctx, fmt.Sprintf(KeyDedup, scope, eventID), "1", d.TTL).Err()
}
