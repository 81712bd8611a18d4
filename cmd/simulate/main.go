// Command simulate runs the sample fulfillment scenarios against in-memory
// state and logs what happened: a normal order, ten concurrent wallet
// orders, and the limited-stock and high-value edge cases.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-order-fulfillment/internal/clock"
	"github.com/ariefcatur/go-order-fulfillment/internal/config"
	"github.com/ariefcatur/go-order-fulfillment/internal/customers"
	"github.com/ariefcatur/go-order-fulfillment/internal/demo"
	"github.com/ariefcatur/go-order-fulfillment/internal/fulfillment"
	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
	"github.com/ariefcatur/go-order-fulfillment/internal/logging"
	"github.com/ariefcatur/go-order-fulfillment/internal/metrics"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/payment"
)

type line struct {
	productID, name, price string
	qty                    int
}

type sim struct {
	coord  *fulfillment.Coordinator
	ledger *inventory.Ledger
	pay    *payment.Processor
	log    *zap.Logger
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	concurrent := flag.Int("orders", 10, "orders placed in the concurrent scenario")
	pool := flag.Int("pool", 5, "concurrent scenario worker limit")
	flag.Parse()

	log, err := logging.New(cfg.LogLevel, "fulfillment-simulate")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	s, err := setup(cfg, log)
	if err != nil {
		log.Fatal("setup", zap.Error(err))
	}

	ctx := context.Background()
	s.normalFlow(ctx)
	s.concurrentOrders(ctx, *concurrent, *pool)
	s.edgeCases(ctx)
	s.summary()
}

func setup(cfg config.Config, log *zap.Logger) (*sim, error) {
	clk := clock.NewSystem()
	custs := customers.NewMemoryStore()
	if _, err := demo.SeedCustomers(context.Background(), custs, clk.Now()); err != nil {
		return nil, err
	}
	ledger, err := inventory.NewSeededLedger(inventory.DefaultStock())
	if err != nil {
		return nil, err
	}
	pay := payment.NewProcessor(
		payment.WithBalances(payment.DefaultBalances()),
		payment.WithLatency(cfg.PaymentLatency),
		payment.WithDeclineRate(cfg.DeclineRate),
		payment.WithUnavailableRate(cfg.UnavailableRate),
		payment.WithClock(clk),
		payment.WithLogger(log.Named("payment")),
	)
	coord := fulfillment.New(orders.NewMemoryStore(), custs, ledger, pay,
		fulfillment.WithClock(clk),
		fulfillment.WithLogger(log.Named("fulfillment")),
		fulfillment.WithMetrics(metrics.NewRegistry()),
		fulfillment.WithLockShards(cfg.LockShards),
		fulfillment.WithNotifier("log", fulfillment.LogNotifier{Log: log.Named("events")}),
	)
	return &sim{coord: coord, ledger: ledger, pay: pay, log: log}, nil
}

// place creates an order for customerID with the given lines and processes
// it with method.
func (s *sim) place(ctx context.Context, customerID string, method orders.PaymentMethod, lines ...line) (fulfillment.Receipt, error) {
	o, err := s.coord.CreateOrder(ctx, customerID)
	if err != nil {
		return fulfillment.Receipt{}, err
	}
	for _, l := range lines {
		if _, err := s.coord.AddItem(ctx, fulfillment.AddItemInput{
			OrderID:     o.ID(),
			ProductID:   l.productID,
			ProductName: l.name,
			UnitPrice:   decimal.RequireFromString(l.price),
			Quantity:    l.qty,
		}); err != nil {
			return fulfillment.Receipt{}, err
		}
	}
	return s.coord.ProcessOrder(ctx, o.ID(), method)
}

func (s *sim) report(scenario string, rc fulfillment.Receipt, err error) {
	if err != nil {
		s.log.Warn(scenario+" failed",
			zap.String("kind", string(fulfillment.Classify(err))),
			zap.Bool("retryable", fulfillment.Retryable(err)),
			zap.Error(err))
		return
	}
	s.log.Info(scenario+" processed",
		zap.String("order_id", rc.Order.ID),
		zap.String("total", rc.Order.Total.String()),
		zap.String("charged", rc.Charged.String()),
		zap.String("status", string(rc.Order.Status)),
		zap.Int("points", rc.PointsAwarded))
}

func (s *sim) normalFlow(ctx context.Context) {
	rc, err := s.place(ctx, "CUST-001", orders.PaymentCreditCard,
		line{"PROD-001", "Widget A", "25.99", 2},
		line{"PROD-002", "Widget B", "15.50", 3},
	)
	s.report("normal order", rc, err)
}

func (s *sim) concurrentOrders(ctx context.Context, n, limit int) {
	var ok, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		customerID := fmt.Sprintf("CUST-%03d", i%3+1)
		g.Go(func() error {
			rc, err := s.place(gctx, customerID, orders.PaymentPayPal, line{"PROD-003", "Widget C", "35.00", 1})
			s.report(fmt.Sprintf("concurrent order %d", i), rc, err)
			if err != nil {
				failed.Add(1)
			} else {
				ok.Add(1)
			}
			// Failures are per order; keep the rest running.
			return nil
		})
	}
	_ = g.Wait()

	st, _ := s.ledger.Stock("PROD-003")
	s.log.Info("concurrent scenario done",
		zap.Int64("processed", ok.Load()),
		zap.Int64("failed", failed.Load()),
		zap.Int("prod_003_available", st.Available),
		zap.Int("prod_003_reserved", st.Reserved))
}

func (s *sim) edgeCases(ctx context.Context) {
	rc, err := s.place(ctx, "CUST-002", orders.PaymentDebitCard, line{"PROD-005", "Limited Widget", "100.00", 25})
	s.report("large quantity order", rc, err)
	rc, err = s.place(ctx, "CUST-002", orders.PaymentDebitCard, line{"PROD-005", "Limited Widget", "100.00", 10})
	s.report("second limited order", rc, err)
	rc, err = s.place(ctx, "CUST-003", orders.PaymentCreditCard, line{"PROD-004", "Expensive Widget", "999.99", 3})
	s.report("high-value order", rc, err)
}

func (s *sim) summary() {
	for _, pid := range s.ledger.Products() {
		st, _ := s.ledger.Stock(pid)
		s.log.Info("stock", zap.String("product_id", pid), zap.Int("available", st.Available), zap.Int("reserved", st.Reserved))
	}
	for _, id := range []string{"CUST-001", "CUST-002", "CUST-003"} {
		s.log.Info("balance", zap.String("customer_id", id), zap.String("balance", s.pay.Balance(id).StringFixed(2)))
	}
	s.log.Info("transactions", zap.Int("count", len(s.pay.Transactions())))
}
