package orders

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// Priority orders above this total get PriorityDiscount off on processing.
	PriorityThreshold = decimal.NewFromInt(100)
	PriorityDiscount  = decimal.RequireFromString("0.10")
)

// Order is the aggregate root for one order's lifecycle. It is not safe for
// concurrent use; the coordinator serializes access per order id.
type Order struct {
	id            string
	customerID    string
	items         []Item
	status        Status
	total         Money
	paymentMethod PaymentMethod
	priority      bool
	createdAt     time.Time
	processedAt   time.Time
	events        []Event
}

// Snapshot is the plain-data view of an order used by stores and transports.
type Snapshot struct {
	ID            string        `json:"id"`
	CustomerID    string        `json:"customer_id"`
	Items         []Item        `json:"items"`
	Status        Status        `json:"status"`
	Total         Money         `json:"total"`
	PaymentMethod PaymentMethod `json:"payment_method,omitempty"`
	Priority      bool          `json:"priority"`
	CreatedAt     time.Time     `json:"created_at"`
	ProcessedAt   *time.Time    `json:"processed_at,omitempty"`
}

// New creates a pending order with no items and raises OrderCreated.
func New(customerID string, now time.Time) *Order {
	o := &Order{
		id:         uuid.NewString(),
		customerID: customerID,
		status:     StatusPending,
		total:      Zero(DefaultCurrency),
		createdAt:  now,
	}
	o.raise(OrderCreated{OrderID: o.id, CustomerID: customerID, At: now})
	return o
}

// FromSnapshot rebuilds an order without raising events.
func FromSnapshot(s Snapshot) (*Order, error) {
	if s.ID == "" || s.CustomerID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidOrder)
	}
	if !s.Status.Valid() {
		return nil, fmt.Errorf("%w: status %q", ErrInvalidOrder, s.Status)
	}
	o := &Order{
		id:            s.ID,
		customerID:    s.CustomerID,
		items:         append([]Item(nil), s.Items...),
		status:        s.Status,
		total:         s.Total,
		paymentMethod: s.PaymentMethod,
		priority:      s.Priority,
		createdAt:     s.CreatedAt,
	}
	if o.total.Currency == "" {
		o.total = Zero(DefaultCurrency)
	}
	if s.ProcessedAt != nil {
		o.processedAt = *s.ProcessedAt
	}
	return o, nil
}

func (o *Order) Snapshot() Snapshot {
	s := Snapshot{
		ID:            o.id,
		CustomerID:    o.customerID,
		Items:         o.Items(),
		Status:        o.status,
		Total:         o.total,
		PaymentMethod: o.paymentMethod,
		Priority:      o.priority,
		CreatedAt:     o.createdAt,
	}
	if !o.processedAt.IsZero() {
		t := o.processedAt
		s.ProcessedAt = &t
	}
	return s
}

// Clone returns a deep copy including pending events.
func (o *Order) Clone() *Order {
	c := *o
	c.items = append([]Item(nil), o.items...)
	c.events = append([]Event(nil), o.events...)
	return &c
}

func (o *Order) ID() string                   { return o.id }
func (o *Order) CustomerID() string           { return o.customerID }
func (o *Order) Status() Status               { return o.status }
func (o *Order) Total() Money                 { return o.total }
func (o *Order) PaymentMethod() PaymentMethod { return o.paymentMethod }
func (o *Order) Priority() bool               { return o.priority }
func (o *Order) CreatedAt() time.Time         { return o.createdAt }
func (o *Order) ProcessedAt() time.Time       { return o.processedAt }

func (o *Order) Items() []Item {
	return append([]Item(nil), o.items...)
}

func (o *Order) AddItem(it Item) error {
	if o.status != StatusPending {
		return fmt.Errorf("%w: cannot add items in status %s", ErrNotPending, o.status)
	}
	if it.Quantity <= 0 {
		return fmt.Errorf("%w: product %s qty %d", ErrInvalidQuantity, it.ProductID, it.Quantity)
	}
	if it.UnitPrice.Currency != o.total.Currency {
		return fmt.Errorf("%w: item in %s, order in %s", ErrCurrencyMismatch, it.UnitPrice.Currency, o.total.Currency)
	}
	o.items = append(o.items, it)
	o.recalculate()
	return nil
}

// RemoveItem drops every line for productID. Removing an absent product is
// not an error.
func (o *Order) RemoveItem(productID string) error {
	if o.status != StatusPending {
		return fmt.Errorf("%w: cannot remove items in status %s", ErrNotPending, o.status)
	}
	kept := o.items[:0]
	for _, it := range o.items {
		if it.ProductID != productID {
			kept = append(kept, it)
		}
	}
	o.items = kept
	o.recalculate()
	return nil
}

func (o *Order) recalculate() {
	total := Zero(o.total.Currency)
	for _, it := range o.items {
		total = total.Add(it.Subtotal())
	}
	o.total = total
}

func (o *Order) SetPaymentMethod(m PaymentMethod) error {
	if o.status != StatusPending {
		return fmt.Errorf("%w: cannot change payment method in status %s", ErrNotPending, o.status)
	}
	o.paymentMethod = m
	return nil
}

func (o *Order) SetPriority(p bool) error {
	if o.status != StatusPending {
		return fmt.Errorf("%w: cannot change priority in status %s", ErrNotPending, o.status)
	}
	o.priority = p
	return nil
}

// CanProcess reports why Process would fail, without mutating the order.
func (o *Order) CanProcess() error {
	if o.status != StatusPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.status, StatusProcessing)
	}
	if len(o.items) == 0 {
		return ErrEmptyOrder
	}
	if o.paymentMethod == "" {
		return ErrPaymentMethodRequired
	}
	if !o.paymentMethod.Recognized() {
		return fmt.Errorf("%w: %s", ErrInvalidPaymentMethod, o.paymentMethod)
	}
	return nil
}

// Process applies the priority discount and moves the order to PROCESSING.
func (o *Order) Process(now time.Time) error {
	if err := o.CanProcess(); err != nil {
		return err
	}
	if o.priority && o.total.Amount.GreaterThan(PriorityThreshold) {
		o.total = o.total.Scale(decimal.NewFromInt(1).Sub(PriorityDiscount))
	}
	o.status = StatusProcessing
	o.processedAt = now
	o.raise(OrderProcessed{
		OrderID:       o.id,
		CustomerID:    o.customerID,
		Total:         o.total,
		PaymentMethod: o.paymentMethod,
		At:            now,
	})
	return nil
}

func (o *Order) Complete(now time.Time) error {
	if err := o.transition(StatusCompleted); err != nil {
		return err
	}
	o.raise(OrderCompleted{OrderID: o.id, At: now})
	return nil
}

func (o *Order) Ship(now time.Time) error {
	if err := o.transition(StatusShipped); err != nil {
		return err
	}
	o.raise(OrderShipped{OrderID: o.id, At: now})
	return nil
}

func (o *Order) Cancel(now time.Time) error {
	prev := o.status
	if err := o.transition(StatusCancelled); err != nil {
		return err
	}
	o.raise(OrderCancelled{OrderID: o.id, PrevStatus: prev, At: now})
	return nil
}

func (o *Order) transition(to Status) error {
	if !CanTransition(o.status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.status, to)
	}
	o.status = to
	return nil
}

func (o *Order) raise(ev Event) {
	o.events = append(o.events, ev)
}

// Events returns the pending events without clearing them.
func (o *Order) Events() []Event {
	return append([]Event(nil), o.events...)
}

// DrainEvents returns the pending events and clears them.
func (o *Order) DrainEvents() []Event {
	evs := o.events
	o.events = nil
	return evs
}

func (o *Order) ClearEvents() {
	o.events = nil
}
