package orders

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const DefaultCurrency = "USD"

// Money is an amount in a single currency. Arithmetic assumes both operands
// share a currency; the aggregate rejects items in a foreign currency.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

func NewMoney(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount, Currency: currency}
}

// USD parses a decimal string like "25.99". It panics on malformed input and is
// meant for literals.
func USD(amount string) Money {
	return NewMoney(decimal.RequireFromString(amount), DefaultCurrency)
}

func Zero(currency string) Money {
	return Money{Amount: decimal.Zero, Currency: currency}
}

func (m Money) Add(o Money) Money {
	return Money{Amount: m.Amount.Add(o.Amount), Currency: m.Currency}
}

func (m Money) Times(qty int) Money {
	return Money{Amount: m.Amount.Mul(decimal.NewFromInt(int64(qty))), Currency: m.Currency}
}

// Scale multiplies by a rate and rounds to cents.
func (m Money) Scale(rate decimal.Decimal) Money {
	return Money{Amount: m.Amount.Mul(rate).Round(2), Currency: m.Currency}
}

func (m Money) GreaterThan(o Money) bool { return m.Amount.GreaterThan(o.Amount) }

func (m Money) LessThan(o Money) bool { return m.Amount.LessThan(o.Amount) }

func (m Money) Equal(o Money) bool {
	return m.Currency == o.Currency && m.Amount.Equal(o.Amount)
}

func (m Money) IsZero() bool { return m.Amount.IsZero() }

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Amount.StringFixed(2), m.Currency)
}
