package orders_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

func Test_MemoryStore_ReadsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := orders.NewMemoryStore()
	o := orders.New("CUST-001", t0)
	require.NoError(t, s.Save(ctx, o))

	got, err := s.FindByID(ctx, o.ID())
	require.NoError(t, err)
	require.NoError(t, got.AddItem(mustItem(t, "P", "5.00", 1)))

	again, err := s.FindByID(ctx, o.ID())
	require.NoError(t, err)
	assert.Empty(t, again.Items(), "mutating a read copy must not leak into the store")
	assert.Empty(t, again.Events(), "pending events are not persisted")
}

func Test_MemoryStore_UpdateUnknownFails(t *testing.T) {
	s := orders.NewMemoryStore()
	err := s.Update(context.Background(), orders.New("CUST-001", t0))
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)
}

func Test_MemoryStore_Queries(t *testing.T) {
	ctx := context.Background()
	s := orders.NewMemoryStore()

	a := orders.New("CUST-001", t0)
	b := orders.New("CUST-001", t0.Add(time.Second))
	c := orders.New("CUST-002", t0.Add(2*time.Second))
	require.NoError(t, c.Cancel(t0))
	for _, o := range []*orders.Order{a, b, c} {
		require.NoError(t, s.Save(ctx, o))
	}

	byCustomer, err := s.FindByCustomer(ctx, "CUST-001")
	require.NoError(t, err)
	require.Len(t, byCustomer, 2)
	assert.Equal(t, a.ID(), byCustomer[0].ID())
	assert.Equal(t, b.ID(), byCustomer[1].ID())

	pending, err := s.FindPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	ok, err := s.Exists(ctx, c.ID())
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, c.ID()))
	_, err = s.FindByID(ctx, c.ID())
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)
}
