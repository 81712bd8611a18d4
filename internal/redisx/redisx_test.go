package redisx_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/redisx"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redisx.New(mr.Addr())
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, redisx.Ping(context.Background(), rdb))
	return mr, rdb
}

func Test_StatusCache_FollowsEvents(t *testing.T) {
	mr, rdb := newRedis(t)
	cache := redisx.NewStatusCache(rdb)
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	_, ok, err := cache.Get(ctx, "ORD-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Notify(ctx, []orders.Event{
		orders.OrderCreated{OrderID: "ORD-1", At: at},
		orders.OrderProcessed{OrderID: "ORD-1", At: at.Add(time.Minute)},
	}))

	e, ok, err := cache.Get(ctx, "ORD-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, orders.StatusProcessing, e.Status)
	assert.True(t, e.UpdatedAt.Equal(at.Add(time.Minute)))

	mr.FastForward(redisx.TTLStatusCache + time.Second)
	_, ok, err = cache.Get(ctx, "ORD-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func Test_Idempotency_Lifecycle(t *testing.T) {
	_, rdb := newRedis(t)
	idem := redisx.NewIdempotency(rdb)
	ctx := context.Background()

	_, claimed, err := idem.Begin(ctx, "k1")
	require.NoError(t, err)
	require.True(t, claimed)

	_, claimed, err = idem.Begin(ctx, "k1")
	assert.ErrorIs(t, err, redisx.ErrInFlight)
	assert.False(t, claimed)

	require.NoError(t, idem.Complete(ctx, "k1", "ORD-1"))
	id, claimed, err := idem.Begin(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, "ORD-1", id)

	_, claimed, err = idem.Begin(ctx, "k2")
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, idem.Abort(ctx, "k2"))
	_, claimed, err = idem.Begin(ctx, "k2")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func Test_Dedup(t *testing.T) {
	_, rdb := newRedis(t)
	d := redisx.NewDedup(rdb)
	ctx := context.Background()

	seen, err := d.Seen(ctx, "worker", "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, d.Mark(ctx, "worker", "evt-1"))
	seen, err = d.Seen(ctx, "worker", "evt-1")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = d.Seen(ctx, "other", "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)
}
