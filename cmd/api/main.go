package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/clock"
	"github.com/ariefcatur/go-order-fulfillment/internal/config"
	"github.com/ariefcatur/go-order-fulfillment/internal/customers"
	"github.com/ariefcatur/go-order-fulfillment/internal/demo"
	"github.com/ariefcatur/go-order-fulfillment/internal/fulfillment"
	"github.com/ariefcatur/go-order-fulfillment/internal/httpx"
	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
	kafkax "github.com/ariefcatur/go-order-fulfillment/internal/kafka"
	"github.com/ariefcatur/go-order-fulfillment/internal/logging"
	"github.com/ariefcatur/go-order-fulfillment/internal/metrics"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/payment"
	"github.com/ariefcatur/go-order-fulfillment/internal/postgres"
	"github.com/ariefcatur/go-order-fulfillment/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	log, err := logging.New(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("exit", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	clk := clock.NewSystem()

	// Stores
	var (
		orderStore    orders.Store    = orders.NewMemoryStore()
		customerStore customers.Store = customers.NewMemoryStore()
	)
	if cfg.PostgresDSN != "" {
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, int32(cfg.PGMaxConns))
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		orderStore = &postgres.OrderStore{DB: db}
		customerStore = &postgres.CustomerStore{DB: db}
		log.Info("using postgres stores")
	}
	if cfg.SeedDemoData {
		n, err := demo.SeedCustomers(ctx, customerStore, clk.Now())
		if err != nil {
			return fmt.Errorf("seed customers: %w", err)
		}
		log.Info("demo customers seeded", zap.Int("added", n))
	}

	// Inventory & payments
	ledger, err := inventory.NewSeededLedger(inventory.DefaultStock())
	if err != nil {
		return err
	}
	pay := payment.NewProcessor(
		payment.WithBalances(payment.DefaultBalances()),
		payment.WithLatency(cfg.PaymentLatency),
		payment.WithDeclineRate(cfg.DeclineRate),
		payment.WithUnavailableRate(cfg.UnavailableRate),
		payment.WithClock(clk),
		payment.WithLogger(log.Named("payment")),
	)

	reg := metrics.NewRegistry()
	opts := []fulfillment.Option{
		fulfillment.WithClock(clk),
		fulfillment.WithLogger(log.Named("fulfillment")),
		fulfillment.WithMetrics(reg),
		fulfillment.WithLockShards(cfg.LockShards),
		fulfillment.WithLockTimeout(cfg.LockTimeout),
		fulfillment.WithNotifier("log", fulfillment.LogNotifier{Log: log.Named("events")}),
	}

	handler := &httpx.Handler{
		Customers: customerStore,
		Stock:     ledger,
		Clock:     clk,
		Log:       log.Named("http"),
	}

	// Redis
	var dedup kafkax.Dedup
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		if err := redisx.Ping(ctx, rdb); err != nil {
			return err
		}
		status := redisx.NewStatusCache(rdb)
		opts = append(opts, fulfillment.WithNotifier("status-cache", status))
		handler.Status = status
		handler.Idem = redisx.NewIdempotency(rdb)
		dedup = redisx.NewDedup(rdb)
	}

	// Kafka
	var prod *kafkax.Producer
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, 1024, log.Named("kafka"))
		prod.Start(ctx)
		opts = append(opts, fulfillment.WithNotifier("kafka", &kafkax.EventPublisher{P: prod, Service: cfg.ServiceName}))
		handler.Queue = &kafkax.ProcessQueue{P: prod, Service: cfg.ServiceName}
	}

	coord := fulfillment.New(orderStore, customerStore, ledger, pay, opts...)
	handler.Coord = coord

	if prod != nil {
		cmdHandler := &kafkax.ProcessCommandHandler{
			Coord:    coord,
			Dedup:    dedup,
			Log:      log.Named("worker"),
			Scope:    cfg.ServiceName + "-process",
			Attempts: 3,
			Backoff:  200 * time.Millisecond,
		}
		cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ServiceName+"-process", orders.TopicProcessRequested, cfg.ProcessWorkers, log.Named("consumer"))
		go func() {
			log.Info("process worker started",
				zap.String("topic", orders.TopicProcessRequested),
				zap.Int("workers", cfg.ProcessWorkers))
			if err := cons.Start(ctx, cmdHandler.Handle); err != nil {
				log.Error("consumer exit", zap.Error(err))
				stop()
			}
		}()
	}

	router := httpx.NewRouter(log.Named("http"), reg.Handler())
	handler.Register(router)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		return fmt.Errorf("listen: %w", err)
	}
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if prod != nil {
		prod.Close()
		prod.WaitClosed()
	}
	return nil
}
