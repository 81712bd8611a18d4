package payment

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/clock"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

const (
	DefaultDeclineRate     = 0.05
	DefaultUnavailableRate = 0.10
)

// RandSource yields values in [0, 1). It must be safe for concurrent use.
type RandSource interface {
	Float64() float64
}

type RandFunc func() float64

func (f RandFunc) Float64() float64 { return f() }

type ChargeRequest struct {
	OrderID    string
	CustomerID string
	Amount     orders.Money
	Method     orders.PaymentMethod
}

// Transaction is the record of a successful charge. There is at most one per
// order id and it is never updated.
type Transaction struct {
	ID         string               `json:"id"`
	OrderID    string               `json:"order_id"`
	CustomerID string               `json:"customer_id"`
	Amount     orders.Money         `json:"amount"`
	Method     orders.PaymentMethod `json:"method"`
	CreatedAt  time.Time            `json:"created_at"`
}

type account struct {
	mu      sync.Mutex
	balance decimal.Decimal
}

// Processor simulates card and wallet payments against local balances.
type Processor struct {
	mu       sync.Mutex // guards txns and inflight
	txns     map[string]Transaction
	inflight map[string]struct{}

	accMu    sync.RWMutex
	accounts map[string]*account

	rnd             RandSource
	declineRate     float64
	unavailableRate float64
	latency         time.Duration
	clock           clock.Clock
	log             *zap.Logger
}

type Option func(*Processor)

func WithRandSource(r RandSource) Option {
	return func(p *Processor) {
		if r != nil {
			p.rnd = r
		}
	}
}

// WithDeclineRate sets the probability of a post-debit credit card decline.
func WithDeclineRate(rate float64) Option {
	return func(p *Processor) { p.declineRate = clampRate(rate) }
}

// WithUnavailableRate sets the probability that the wallet provider is down.
func WithUnavailableRate(rate float64) Option {
	return func(p *Processor) { p.unavailableRate = clampRate(rate) }
}

// WithLatency adds a fixed simulated round trip to every charge.
func WithLatency(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.latency = d
		}
	}
}

func WithBalances(balances map[string]decimal.Decimal) Option {
	return func(p *Processor) {
		for id, b := range balances {
			p.accounts[id] = &account{balance: b}
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(p *Processor) {
		if c != nil {
			p.clock = c
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.log = l
		}
	}
}

func NewProcessor(opts ...Option) *Processor {
	p := &Processor{
		txns:            make(map[string]Transaction),
		inflight:        make(map[string]struct{}),
		accounts:        make(map[string]*account),
		rnd:             RandFunc(rand.Float64),
		declineRate:     DefaultDeclineRate,
		unavailableRate: DefaultUnavailableRate,
		clock:           clock.NewSystem(),
		log:             zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DefaultBalances are the demo balances the simulation starts from.
func DefaultBalances() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"CUST-001": decimal.RequireFromString("1000.00"),
		"CUST-002": decimal.RequireFromString("500.00"),
		"CUST-003": decimal.RequireFromString("2000.00"),
	}
}

func (p *Processor) SetBalance(customerID string, amount decimal.Decimal) {
	acc := p.account(customerID, true)
	acc.mu.Lock()
	acc.balance = amount
	acc.mu.Unlock()
}

// Balance returns zero for customers without an account.
func (p *Processor) Balance(customerID string) decimal.Decimal {
	acc := p.account(customerID, false)
	if acc == nil {
		return decimal.Zero
	}
	acc.mu.Lock()
	defer acc.mu.Unlock()
	return acc.balance
}

func (p *Processor) account(customerID string, create bool) *account {
	p.accMu.RLock()
	acc := p.accounts[customerID]
	p.accMu.RUnlock()
	if acc != nil || !create {
		return acc
	}
	p.accMu.Lock()
	defer p.accMu.Unlock()
	if acc = p.accounts[customerID]; acc == nil {
		acc = &account{balance: decimal.Zero}
		p.accounts[customerID] = acc
	}
	return acc
}

// Charge runs the method-specific step and records a transaction on success.
// A second charge for the same order id, recorded or in flight, fails with
// ErrAlreadyCharged before any balance is touched. Once started the charge
// runs to completion; ctx is not consulted.
func (p *Processor) Charge(_ context.Context, req ChargeRequest) (Transaction, error) {
	if req.Amount.Amount.IsNegative() {
		return Transaction{}, fmt.Errorf("%w: %s", ErrInvalidAmount, req.Amount)
	}
	if err := p.claim(req.OrderID); err != nil {
		return Transaction{}, err
	}
	defer p.unclaim(req.OrderID)

	if p.latency > 0 {
		time.Sleep(p.latency)
	}

	var err error
	switch req.Method {
	case orders.PaymentCreditCard:
		err = p.chargeCreditCard(req)
	case orders.PaymentDebitCard:
		err = p.debit(req)
	case orders.PaymentPayPal:
		err = p.chargeWallet(req)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedMethod, req.Method)
	}
	if err != nil {
		p.log.Info("charge failed",
			zap.String("order_id", req.OrderID),
			zap.String("customer_id", req.CustomerID),
			zap.String("method", string(req.Method)),
			zap.Error(err))
		return Transaction{}, err
	}

	txn := Transaction{
		ID:         "TXN-" + uuid.NewString(),
		OrderID:    req.OrderID,
		CustomerID: req.CustomerID,
		Amount:     req.Amount,
		Method:     req.Method,
		CreatedAt:  p.clock.Now(),
	}
	p.mu.Lock()
	p.txns[req.OrderID] = txn
	p.mu.Unlock()
	return txn, nil
}

func (p *Processor) claim(orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.txns[orderID]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyCharged, orderID)
	}
	if _, ok := p.inflight[orderID]; ok {
		return fmt.Errorf("%w: %s (charge in flight)", ErrAlreadyCharged, orderID)
	}
	p.inflight[orderID] = struct{}{}
	return nil
}

func (p *Processor) unclaim(orderID string) {
	p.mu.Lock()
	delete(p.inflight, orderID)
	p.mu.Unlock()
}

// chargeCreditCard debits first and may then be declined; the debit stands.
func (p *Processor) chargeCreditCard(req ChargeRequest) error {
	if err := p.debit(req); err != nil {
		return err
	}
	if p.rnd.Float64() < p.declineRate {
		return fmt.Errorf("%w: order %s", ErrDeclinedByBank, req.OrderID)
	}
	return nil
}

func (p *Processor) debit(req ChargeRequest) error {
	acc := p.account(req.CustomerID, false)
	if acc == nil {
		return fmt.Errorf("%w: customer %s has no balance, required %s",
			ErrInsufficientFunds, req.CustomerID, req.Amount.Amount.StringFixed(2))
	}
	acc.mu.Lock()
	defer acc.mu.Unlock()
	if acc.balance.LessThan(req.Amount.Amount) {
		return fmt.Errorf("%w: customer %s available %s, required %s",
			ErrInsufficientFunds, req.CustomerID, acc.balance.StringFixed(2), req.Amount.Amount.StringFixed(2))
	}
	acc.balance = acc.balance.Sub(req.Amount.Amount)
	return nil
}

func (p *Processor) chargeWallet(req ChargeRequest) error {
	if p.rnd.Float64() < p.unavailableRate {
		return fmt.Errorf("%w: wallet provider, order %s", ErrServiceUnavailable, req.OrderID)
	}
	return nil
}

func (p *Processor) Transaction(orderID string) (Transaction, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.txns[orderID]
	return t, ok
}

func (p *Processor) Transactions() []Transaction {
	p.mu.Lock()
	out := make([]Transaction, 0, len(p.txns))
	for _, t := range p.txns {
		out = append(out, t)
	}
	p.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	return out
}

func clampRate(r float64) float64 {
	switch {
	case r < 0:
		return 0
	case r > 1:
		return 1
	}
	return r
}
