package customers

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrCustomerNotFound   = errors.New("customer not found")
	ErrInactiveCustomer   = errors.New("customer is not active")
	ErrNegativePoints     = errors.New("points cannot be negative")
	ErrInsufficientPoints = errors.New("insufficient loyalty points")
	ErrInvalidCustomer    = errors.New("invalid customer")
	ErrEmailTaken         = errors.New("email already registered")
)

type Tier string

const (
	TierRegular  Tier = "REGULAR"
	TierSilver   Tier = "SILVER"
	TierGold     Tier = "GOLD"
	TierPlatinum Tier = "PLATINUM"
)

var tierRates = map[Tier]decimal.Decimal{
	TierRegular:  decimal.Zero,
	TierSilver:   decimal.RequireFromString("0.05"),
	TierGold:     decimal.RequireFromString("0.10"),
	TierPlatinum: decimal.RequireFromString("0.15"),
}

// TierFor derives the tier from a point total.
func TierFor(points int) Tier {
	switch {
	case points >= 1000:
		return TierPlatinum
	case points >= 500:
		return TierGold
	case points >= 100:
		return TierSilver
	default:
		return TierRegular
	}
}

func (t Tier) DiscountRate() decimal.Decimal { return tierRates[t] }

type Customer struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	LoyaltyPoints int       `json:"loyalty_points"`
	Active        bool      `json:"active"`
	RegisteredAt  time.Time `json:"registered_at"`
}

// New returns an active customer with no points.
func New(id, email, name string, now time.Time) (Customer, error) {
	if id == "" || email == "" {
		return Customer{}, fmt.Errorf("%w: id and email are required", ErrInvalidCustomer)
	}
	return Customer{ID: id, Email: email, Name: name, Active: true, RegisteredAt: now}, nil
}

func (c Customer) Tier() Tier { return TierFor(c.LoyaltyPoints) }

func (c Customer) DiscountRate() decimal.Decimal { return c.Tier().DiscountRate() }

func (c *Customer) AddLoyaltyPoints(points int) error {
	if points < 0 {
		return ErrNegativePoints
	}
	c.LoyaltyPoints += points
	return nil
}

func (c *Customer) SpendLoyaltyPoints(points int) error {
	if points < 0 {
		return ErrNegativePoints
	}
	if points > c.LoyaltyPoints {
		return fmt.Errorf("%w: have %d, want %d", ErrInsufficientPoints, c.LoyaltyPoints, points)
	}
	c.LoyaltyPoints -= points
	return nil
}

func (c *Customer) Activate()   { c.Active = true }
func (c *Customer) Deactivate() { c.Active = false }
