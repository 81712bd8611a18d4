package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const pendingMarker = "-"

// ErrInFlight means another request holding the same key has not finished.
var ErrInFlight = errors.New("request with this idempotency key is in progress")

// Idempotency maps client idempotency keys to the order they created.
type Idempotency struct {
	R   redis.Cmdable
	TTL time.Duration
}

func NewIdempotency(r redis.Cmdable) *Idempotency {
	return &Idempotency{R: r, TTL: TTLIdempotency}
}

// Begin claims key. When the key already resolved to an order, that order id
// is returned with claimed=false.
func (i *Idempotency) Begin(ctx context.Context, key string) (orderID string, claimed bool, err error) {
	k := fmt.Sprintf(KeyIdemOrderCreate, key)
	ok, err := i.R.SetNX(ctx, k, pendingMarker, i.TTL).Result()
	if err != nil {
		return "", false, err
	}
	if ok {
		return "", true, nil
	}
	v, err := i.R.Get(ctx, k).Result()
	switch {
	case errors.Is(err, redis.Nil):
		// Expired or aborted between the two calls; try once more.
		ok, err = i.R.SetNX(ctx, k, pendingMarker, i.TTL).Result()
		if err != nil {
			return "", false, err
		}
		if ok {
			return "", true, nil
		}
		return "", false, ErrInFlight
	case err != nil:
		return "", false, err
	case v == pendingMarker:
		return "", false, ErrInFlight
	}
	return v, false, nil
}

func (i *Idempotency) Complete(ctx context.Context, key, orderID string) error {
	return i.R.Set(ctx, fmt.Sprintf(KeyIdemOrderCreate, key), orderID, i.TTL).Err()
}

// Abort frees a claimed key after a failed create so the client may retry.
func (i *Idempotency) Abort(ctx context.Context, key string) error {
	return i.R.Del(ctx, fmt.Sprintf(KeyIdemOrderCreate, key)).Err()
}
