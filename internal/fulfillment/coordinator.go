package fulfillment

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/clock"
	"github.com/ariefcatur/go-order-fulfillment/internal/customers"
	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
	"github.com/ariefcatur/go-order-fulfillment/internal/metrics"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/payment"
)

type Inventory interface {
	Available(productID string, qty int) bool
	ReserveAll(lines []inventory.Line) error
	ReleaseAll(lines []inventory.Line)
}

type Payments interface {
	Charge(ctx context.Context, req payment.ChargeRequest) (payment.Transaction, error)
}

// pointsPer is the currency amount that earns one loyalty point.
var pointsPer = decimal.NewFromInt(10)

// Coordinator runs the order lifecycle against the inventory ledger, the
// payment processor and the stores. All mutations of one order are
// serialized through a per-order lock; different orders run in parallel.
type Coordinator struct {
	orders    orders.Store
	customers customers.Store
	inventory Inventory
	payments  Payments

	notifiers     []namedNotifier
	clock         clock.Clock
	log           *zap.Logger
	metrics       *metrics.Registry
	orderLocks    *lockTable
	customerLocks *lockTable
	lockShards    int
	lockTimeout   time.Duration
}

type Option func(*Coordinator)

// WithNotifier adds an event sink. Sinks are called in registration order
// after each successful persist; their errors are logged, not returned.
func WithNotifier(name string, n Notifier) Option {
	return func(c *Coordinator) {
		if n != nil {
			c.notifiers = append(c.notifiers, namedNotifier{name: name, n: n})
		}
	}
}

func WithClock(clk clock.Clock) Option {
	return func(c *Coordinator) {
		if clk != nil {
			c.clock = clk
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.log = l
		}
	}
}

func WithMetrics(m *metrics.Registry) Option {
	return func(c *Coordinator) {
		if m != nil {
			c.metrics = m
		}
	}
}

func WithLockShards(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.lockShards = n
		}
	}
}

// WithLockTimeout bounds how long an operation waits for its order lock, on
// top of any deadline already on the caller's context.
func WithLockTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.lockTimeout = d
		}
	}
}

func New(orderStore orders.Store, customerStore customers.Store, inv Inventory, pay Payments, opts ...Option) *Coordinator {
	c := &Coordinator{
		orders:     orderStore,
		customers:  customerStore,
		inventory:  inv,
		payments:   pay,
		clock:      clock.NewSystem(),
		log:        zap.NewNop(),
		lockShards: DefaultLockShards,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = metrics.NewRegistry()
	}
	c.orderLocks = newLockTable(c.lockShards)
	c.customerLocks = newLockTable(c.lockShards)
	return c
}

// Receipt describes a successfully processed order.
type Receipt struct {
	Order         orders.Snapshot     `json:"order"`
	Transaction   payment.Transaction `json:"transaction"`
	Charged       orders.Money        `json:"charged"`
	PointsAwarded int                 `json:"points_awarded"`
}

type AddItemInput struct {
	OrderID     string
	ProductID   string
	ProductName string
	UnitPrice   decimal.Decimal
	Quantity    int
}

// CreateOrder opens an empty pending order for an active customer.
func (c *Coordinator) CreateOrder(ctx context.Context, customerID string) (*orders.Order, error) {
	cust, err := c.customers.FindByID(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	if !cust.Active {
		return nil, fmt.Errorf("create order: %w: %s", customers.ErrInactiveCustomer, customerID)
	}

	o := orders.New(customerID, c.clock.Now())
	events := o.DrainEvents()
	if err := c.orders.Save(ctx, o); err != nil {
		return nil, fmt.Errorf("save order %s: %w", o.ID(), err)
	}
	c.metrics.OrdersCreated.Inc()
	c.notify(ctx, events)
	c.log.Debug("order created", zap.String("order_id", o.ID()), zap.String("customer_id", customerID))
	return o, nil
}

// AddItem appends a line to a pending order. The product must currently have
// enough sellable stock for everything the order holds of it; nothing is
// reserved yet.
func (c *Coordinator) AddItem(ctx context.Context, in AddItemInput) (*orders.Order, error) {
	item, err := orders.NewItem(in.ProductID, in.ProductName, orders.NewMoney(in.UnitPrice, orders.DefaultCurrency), in.Quantity)
	if err != nil {
		return nil, err
	}
	return c.mutate(ctx, in.OrderID, func(o *orders.Order) error {
		want := in.Quantity
		for _, it := range o.Items() {
			if it.ProductID == in.ProductID {
				want += it.Quantity
			}
		}
		if !c.inventory.Available(in.ProductID, want) {
			return fmt.Errorf("%w: product %s qty %d", inventory.ErrInsufficientInventory, in.ProductID, want)
		}
		return o.AddItem(item)
	})
}

func (c *Coordinator) RemoveItem(ctx context.Context, orderID, productID string) (*orders.Order, error) {
	return c.mutate(ctx, orderID, func(o *orders.Order) error { return o.RemoveItem(productID) })
}

func (c *Coordinator) SetPriority(ctx context.Context, orderID string, priority bool) (*orders.Order, error) {
	return c.mutate(ctx, orderID, func(o *orders.Order) error { return o.SetPriority(priority) })
}

func (c *Coordinator) CompleteOrder(ctx context.Context, orderID string) (*orders.Order, error) {
	return c.mutate(ctx, orderID, func(o *orders.Order) error { return o.Complete(c.clock.Now()) })
}

func (c *Coordinator) ShipOrder(ctx context.Context, orderID string) (*orders.Order, error) {
	return c.mutate(ctx, orderID, func(o *orders.Order) error { return o.Ship(c.clock.Now()) })
}

// CancelOrder cancels a pending or processing order. A processing order
// holds a reservation, which is released once the cancellation is stored.
// The recorded payment is left untouched.
func (c *Coordinator) CancelOrder(ctx context.Context, orderID string) (*orders.Order, error) {
	unlock, err := c.lockOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	ctx = context.WithoutCancel(ctx)

	o, err := c.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	held := o.Status() == orders.StatusProcessing
	if err := o.Cancel(c.clock.Now()); err != nil {
		return nil, err
	}
	events := o.DrainEvents()
	if err := c.orders.Update(ctx, o); err != nil {
		return nil, fmt.Errorf("persist order %s: %w", orderID, err)
	}
	if held {
		c.inventory.ReleaseAll(linesOf(o))
		c.log.Info("released reservation of cancelled order", zap.String("order_id", orderID))
	}
	c.notify(ctx, events)
	return o, nil
}

// ProcessOrder reserves stock for every line, moves the order to PROCESSING,
// charges the customer and accrues loyalty points, then persists the order.
// A failed charge releases the reservation before a *PaymentError is
// returned; the stored order stays PENDING and may be processed again.
func (c *Coordinator) ProcessOrder(ctx context.Context, orderID string, method orders.PaymentMethod) (rc Receipt, err error) {
	start := time.Now()
	defer func() {
		c.metrics.FulfillmentSec.Observe(time.Since(start).Seconds())
		if err != nil {
			kind := Classify(err)
			c.metrics.Failures.WithLabelValues(string(kind)).Inc()
			c.log.Warn("process order failed",
				zap.String("order_id", orderID),
				zap.String("kind", string(kind)),
				zap.Bool("retryable", Retryable(err)),
				zap.Error(err))
			return
		}
		c.metrics.OrdersProcessed.Inc()
	}()

	unlock, err := c.lockOrder(ctx, orderID)
	if err != nil {
		return Receipt{}, err
	}
	defer unlock()
	// The caller's deadline bounds the lock wait only.
	ctx = context.WithoutCancel(ctx)

	o, err := c.orders.FindByID(ctx, orderID)
	if err != nil {
		return Receipt{}, err
	}
	cust, err := c.customers.FindByID(ctx, o.CustomerID())
	if err != nil {
		return Receipt{}, fmt.Errorf("process order %s: %w", orderID, err)
	}
	if err := o.SetPaymentMethod(method); err != nil {
		return Receipt{}, err
	}
	if err := o.CanProcess(); err != nil {
		return Receipt{}, fmt.Errorf("process order %s: %w", orderID, err)
	}

	lines := linesOf(o)
	if err := c.inventory.ReserveAll(lines); err != nil {
		c.metrics.InventoryRejections.Inc()
		return Receipt{}, fmt.Errorf("reserve inventory for order %s: %w", orderID, err)
	}

	if err := o.Process(c.clock.Now()); err != nil {
		c.compensate(orderID, lines, err)
		return Receipt{}, fmt.Errorf("process order %s: %w", orderID, err)
	}

	amount := o.Total().Scale(decimal.NewFromInt(1).Sub(cust.DiscountRate()))
	txn, err := c.payments.Charge(ctx, payment.ChargeRequest{
		OrderID:    orderID,
		CustomerID: cust.ID,
		Amount:     amount,
		Method:     method,
	})
	if err != nil {
		c.compensate(orderID, lines, err)
		return Receipt{}, &PaymentError{OrderID: orderID, Cause: err}
	}

	points := LoyaltyPoints(o.Total())
	c.accrue(ctx, cust.ID, orderID, points)

	events := o.DrainEvents()
	if err := c.orders.Update(ctx, o); err != nil {
		// The stored order is still PENDING, so neither a retry nor CancelOrder
		// releases this reservation. It needs manual reconciliation.
		c.log.Error("reservation stranded: order charged but not persisted",
			zap.String("order_id", orderID),
			zap.String("customer_id", cust.ID),
			zap.String("transaction_id", txn.ID),
			zap.Any("lines", lines),
			zap.Error(err))
		return Receipt{Transaction: txn}, fmt.Errorf("persist order %s after charge %s: %w", orderID, txn.ID, err)
	}
	c.notify(ctx, events)

	c.log.Info("order processed",
		zap.String("order_id", orderID),
		zap.String("customer_id", cust.ID),
		zap.String("transaction_id", txn.ID),
		zap.String("charged", amount.String()),
		zap.Int("points", points))
	return Receipt{Order: o.Snapshot(), Transaction: txn, Charged: amount, PointsAwarded: points}, nil
}

func (c *Coordinator) GetOrder(ctx context.Context, orderID string) (*orders.Order, error) {
	return c.orders.FindByID(ctx, orderID)
}

func (c *Coordinator) GetCustomerOrders(ctx context.Context, customerID string) ([]*orders.Order, error) {
	return c.orders.FindByCustomer(ctx, customerID)
}

func (c *Coordinator) GetPendingOrders(ctx context.Context) ([]*orders.Order, error) {
	return c.orders.FindPending(ctx)
}

// LoyaltyPoints is one point per full ten currency units.
func LoyaltyPoints(total orders.Money) int {
	if total.Amount.IsNegative() {
		return 0
	}
	return int(total.Amount.Div(pointsPer).Floor().IntPart())
}

// mutate loads an order under its lock, applies fn and persists the result.
func (c *Coordinator) mutate(ctx context.Context, orderID string, fn func(o *orders.Order) error) (*orders.Order, error) {
	unlock, err := c.lockOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	ctx = context.WithoutCancel(ctx)

	o, err := c.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := fn(o); err != nil {
		return nil, err
	}
	events := o.DrainEvents()
	if err := c.orders.Update(ctx, o); err != nil {
		return nil, fmt.Errorf("persist order %s: %w", orderID, err)
	}
	c.notify(ctx, events)
	return o, nil
}

func (c *Coordinator) lockOrder(ctx context.Context, orderID string) (func(), error) {
	return c.acquire(ctx, c.orderLocks, orderID)
}

func (c *Coordinator) lockCustomer(ctx context.Context, customerID string) (func(), error) {
	return c.acquire(ctx, c.customerLocks, customerID)
}

func (c *Coordinator) acquire(ctx context.Context, t *lockTable, key string) (func(), error) {
	if c.lockTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.lockTimeout)
		defer cancel()
	}
	start := time.Now()
	unlock, err := t.lock(ctx, key)
	c.metrics.LockWaitSec.Observe(time.Since(start).Seconds())
	return unlock, err
}

func (c *Coordinator) compensate(orderID string, lines []inventory.Line, cause error) {
	c.inventory.ReleaseAll(lines)
	c.metrics.Compensations.Inc()
	c.log.Info("released reservation after failure",
		zap.String("order_id", orderID),
		zap.Int("lines", len(lines)),
		zap.NamedError("cause", cause))
}

// accrue adds loyalty points under the customer's lock. It is best-effort:
// the charge has already succeeded and is not undone if this fails.
func (c *Coordinator) accrue(ctx context.Context, customerID, orderID string, points int) {
	if points <= 0 {
		return
	}
	unlock, err := c.lockCustomer(ctx, customerID)
	if err != nil {
		c.log.Error("loyalty accrual skipped", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	defer unlock()

	cust, err := c.customers.FindByID(ctx, customerID)
	if err == nil {
		if err = cust.AddLoyaltyPoints(points); err == nil {
			err = c.customers.Update(ctx, cust)
		}
	}
	if err != nil {
		c.log.Error("loyalty accrual failed",
			zap.String("order_id", orderID),
			zap.String("customer_id", customerID),
			zap.Int("points", points),
			zap.Error(err))
		return
	}
	c.metrics.LoyaltyPoints.Add(float64(points))
}

func (c *Coordinator) notify(ctx context.Context, events []orders.Event) {
	if len(events) == 0 {
		return
	}
	for _, nn := range c.notifiers {
		if err := nn.n.Notify(ctx, events); err != nil {
			c.metrics.Notifications.WithLabelValues(nn.name, "error").Inc()
			c.log.Warn("notify failed", zap.String("sink", nn.name), zap.Error(err))
			continue
		}
		c.metrics.Notifications.WithLabelValues(nn.name, "ok").Inc()
	}
}

func linesOf(o *orders.Order) []inventory.Line {
	items := o.Items()
	lines := make([]inventory.Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, inventory.Line{ProductID: it.ProductID, Qty: it.Quantity})
	}
	return lines
}
