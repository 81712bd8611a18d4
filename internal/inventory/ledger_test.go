package inventory_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
)

func seeded(t *testing.T) *inventory.Ledger {
	t.Helper()
	l, err := inventory.NewSeededLedger(inventory.DefaultStock())
	require.NoError(t, err)
	return l
}

func Test_Reserve_LimitedStockScenario(t *testing.T) {
	l := seeded(t)

	require.True(t, l.Reserve("PROD-005", 25))
	assert.Equal(t, 5, l.Sellable("PROD-005"))

	assert.False(t, l.Reserve("PROD-005", 10))
	assert.Equal(t, 5, l.Sellable("PROD-005"))

	st, ok := l.Stock("PROD-005")
	require.True(t, ok)
	assert.Equal(t, 25, st.Reserved)
	assert.Equal(t, 30, st.Total())
}

func Test_Available(t *testing.T) {
	l := seeded(t)

	assert.True(t, l.Available("PROD-002", 50))
	assert.False(t, l.Available("PROD-002", 51))
	assert.False(t, l.Available("PROD-404", 1))
	assert.False(t, l.Available("PROD-002", 0))
	assert.Equal(t, 0, l.Sellable("PROD-404"))
}

func Test_Release_IsNoOpWithoutReservation(t *testing.T) {
	l := seeded(t)

	l.Release("PROD-001", 5)
	l.Release("PROD-404", 5)
	st, _ := l.Stock("PROD-001")
	assert.Equal(t, inventory.Stock{ProductID: "PROD-001", Available: 100}, st)

	require.True(t, l.Reserve("PROD-001", 3))
	l.Release("PROD-001", 4)
	st, _ = l.Stock("PROD-001")
	assert.Equal(t, 3, st.Reserved, "releasing more than reserved changes nothing")

	l.Release("PROD-001", 3)
	st, _ = l.Stock("PROD-001")
	assert.Equal(t, inventory.Stock{ProductID: "PROD-001", Available: 100}, st)
}

func Test_Seed_OnlyOnce(t *testing.T) {
	l := inventory.NewLedger()
	require.NoError(t, l.Seed("X", 1))
	assert.ErrorIs(t, l.Seed("X", 5), inventory.ErrAlreadySeeded)
	assert.ErrorIs(t, l.Seed("Y", -1), inventory.ErrInvalidQuantity)
	assert.Equal(t, []string{"X"}, l.Products())
}

func Test_ReserveAll_IsAllOrNothing(t *testing.T) {
	l := seeded(t)

	err := l.ReserveAll([]inventory.Line{
		{ProductID: "PROD-001", Qty: 10},
		{ProductID: "PROD-005", Qty: 31},
		{ProductID: "PROD-404", Qty: 1},
	})

	require.ErrorIs(t, err, inventory.ErrInsufficientInventory)
	var short *inventory.ShortageError
	require.True(t, errors.As(err, &short))
	assert.Equal(t, []inventory.Shortage{
		{ProductID: "PROD-005", Required: 31, Available: 30},
		{ProductID: "PROD-404", Required: 1, Available: 0},
	}, short.Shortages)

	assert.Equal(t, 100, l.Sellable("PROD-001"), "earlier lines must not stay reserved")
	assert.Equal(t, 30, l.Sellable("PROD-005"))
}

func Test_ReserveAll_SumsDuplicateLines(t *testing.T) {
	l := seeded(t)

	err := l.ReserveAll([]inventory.Line{
		{ProductID: "PROD-005", Qty: 20},
		{ProductID: "PROD-005", Qty: 20},
	})
	require.ErrorIs(t, err, inventory.ErrInsufficientInventory)
	assert.Equal(t, 30, l.Sellable("PROD-005"))

	require.NoError(t, l.ReserveAll([]inventory.Line{
		{ProductID: "PROD-005", Qty: 10},
		{ProductID: "PROD-005", Qty: 20},
	}))
	assert.Equal(t, 0, l.Sellable("PROD-005"))

	l.ReleaseAll([]inventory.Line{{ProductID: "PROD-005", Qty: 10}, {ProductID: "PROD-005", Qty: 20}})
	assert.Equal(t, 30, l.Sellable("PROD-005"))
}

func Test_ReserveAll_RejectsNonPositiveQuantity(t *testing.T) {
	l := seeded(t)
	err := l.ReserveAll([]inventory.Line{{ProductID: "PROD-001", Qty: 0}})
	assert.ErrorIs(t, err, inventory.ErrInvalidQuantity)
}

func Test_Reserve_ConcurrentNeverOversells(t *testing.T) {
	l := inventory.NewLedger()
	require.NoError(t, l.Seed("HOT", 37))

	var wg sync.WaitGroup
	var won atomic.Int64
	for i := 0; i < 500; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Reserve("HOT", 1) {
				won.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(37), won.Load())
	st, _ := l.Stock("HOT")
	assert.Equal(t, 0, st.Available)
	assert.Equal(t, 37, st.Reserved)
}

func Test_ReserveReleaseAll_ConservesStockUnderContention(t *testing.T) {
	l := seeded(t)
	initial := inventory.DefaultStock()

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Opposite product orders on alternate goroutines exercise lock ordering.
			lines := []inventory.Line{{ProductID: "PROD-003", Qty: 2}, {ProductID: "PROD-005", Qty: 1}}
			if i%2 == 1 {
				lines[0], lines[1] = lines[1], lines[0]
			}
			for j := 0; j < 50; j++ {
				if err := l.ReserveAll(lines); err == nil {
					l.ReleaseAll(lines)
				}
			}
		}()
	}
	wg.Wait()

	for _, pid := range l.Products() {
		st, _ := l.Stock(pid)
		assert.Equal(t, initial[pid], st.Total(), pid)
		assert.Equal(t, 0, st.Reserved, pid)
	}
}
