package customers_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-order-fulfillment/internal/customers"
)

var now = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func Test_TierFor_Thresholds(t *testing.T) {
	tests := []struct {
		points int
		tier   customers.Tier
		rate   string
	}{
		{0, customers.TierRegular, "0"},
		{99, customers.TierRegular, "0"},
		{100, customers.TierSilver, "0.05"},
		{499, customers.TierSilver, "0.05"},
		{500, customers.TierGold, "0.10"},
		{999, customers.TierGold, "0.10"},
		{1000, customers.TierPlatinum, "0.15"},
		{50000, customers.TierPlatinum, "0.15"},
	}
	for _, tc := range tests {
		tier := customers.TierFor(tc.points)
		assert.Equal(t, tc.tier, tier, "points=%d", tc.points)
		assert.True(t, decimal.RequireFromString(tc.rate).Equal(tier.DiscountRate()), "points=%d", tc.points)
	}
}

func Test_LoyaltyPoints(t *testing.T) {
	c, err := customers.New("CUST-001", "john@example.com", "John Doe", now)
	require.NoError(t, err)
	assert.True(t, c.Active)

	require.NoError(t, c.AddLoyaltyPoints(150))
	assert.Equal(t, customers.TierSilver, c.Tier())

	assert.ErrorIs(t, c.AddLoyaltyPoints(-1), customers.ErrNegativePoints)
	assert.ErrorIs(t, c.SpendLoyaltyPoints(151), customers.ErrInsufficientPoints)
	assert.Equal(t, 150, c.LoyaltyPoints)

	require.NoError(t, c.SpendLoyaltyPoints(100))
	assert.Equal(t, customers.TierRegular, c.Tier(), "tier follows the current point total")
}

func Test_New_RequiresIDAndEmail(t *testing.T) {
	_, err := customers.New("", "x@example.com", "X", now)
	assert.ErrorIs(t, err, customers.ErrInvalidCustomer)
}

func Test_MemoryStore_EmailIndexFollowsUpdates(t *testing.T) {
	ctx := context.Background()
	s := customers.NewMemoryStore()
	c, err := customers.New("CUST-001", "john@example.com", "John Doe", now)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, c))

	c.Email = "johnny@example.com"
	require.NoError(t, s.Update(ctx, c))

	_, err = s.FindByEmail(ctx, "john@example.com")
	assert.ErrorIs(t, err, customers.ErrCustomerNotFound)

	got, err := s.FindByEmail(ctx, "johnny@example.com")
	require.NoError(t, err)
	assert.Equal(t, "CUST-001", got.ID)
}

func Test_MemoryStore_UpdateUnknownAndEmailClash(t *testing.T) {
	ctx := context.Background()
	s := customers.NewMemoryStore()

	ghost, err := customers.New("CUST-404", "ghost@example.com", "Ghost", now)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Update(ctx, ghost), customers.ErrCustomerNotFound)

	a, _ := customers.New("A", "a@example.com", "A", now)
	b, _ := customers.New("B", "a@example.com", "B", now)
	require.NoError(t, s.Save(ctx, a))
	assert.ErrorIs(t, s.Save(ctx, b), customers.ErrEmailTaken)

	ok, err := s.Exists(ctx, "B")
	require.NoError(t, err)
	assert.False(t, ok)
}
