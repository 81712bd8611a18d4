package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr     string
	PostgresDSN  string // empty: in-memory stores
	PGMaxConns   int
	RedisAddr    string // empty: no cache or idempotency keys
	KafkaBrokers []string
	ServiceName  string
	LogLevel     string

	LockShards  int
	LockTimeout time.Duration

	PaymentLatency  time.Duration
	DeclineRate     float64
	UnavailableRate float64

	ProcessWorkers int
	SeedDemoData   bool
}

// Load reads the environment. Malformed numbers fall back to the default;
// Validate reports out-of-range values.
func Load() Config {
	return Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":8081"),
		PostgresDSN:     os.Getenv("POSTGRES_DSN"),
		PGMaxConns:      getInt("POSTGRES_MAX_CONNS", 8),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		KafkaBrokers:    splitCSV(os.Getenv("KAFKA_BROKERS")),
		ServiceName:     getenv("SERVICE_NAME", "order-fulfillment"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LockShards:      getInt("LOCK_SHARDS", 256),
		LockTimeout:     getDuration("LOCK_TIMEOUT", 5*time.Second),
		PaymentLatency:  getDuration("PAYMENT_LATENCY", 100*time.Millisecond),
		DeclineRate:     getFloat("CREDIT_CARD_DECLINE_RATE", 0.05),
		UnavailableRate: getFloat("WALLET_UNAVAILABLE_RATE", 0.10),
		ProcessWorkers:  getInt("PROCESS_WORKERS", 4),
		SeedDemoData:    getBool("SEED_DEMO_DATA", true),
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("HTTP_ADDR is empty"))
	}
	if c.LockShards <= 0 {
		errs = append(errs, fmt.Errorf("LOCK_SHARDS must be positive, got %d", c.LockShards))
	}
	if c.LockTimeout < 0 || c.PaymentLatency < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	for name, r := range map[string]float64{
		"CREDIT_CARD_DECLINE_RATE": c.DeclineRate,
		"WALLET_UNAVAILABLE_RATE":  c.UnavailableRate,
	} {
		if r < 0 || r > 1 {
			errs = append(errs, fmt.Errorf("%s must be within [0,1], got %v", name, r))
		}
	}
	if c.PGMaxConns <= 0 {
		errs = append(errs, fmt.Errorf("POSTGRES_MAX_CONNS must be positive, got %d", c.PGMaxConns))
	}
	if c.ProcessWorkers <= 0 {
		errs = append(errs, fmt.Errorf("PROCESS_WORKERS must be positive, got %d", c.ProcessWorkers))
	}
	return errors.Join(errs...)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return n
	}
	return def
}

func getFloat(k string, def float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(k), 64); err == nil {
		return f
	}
	return def
}

func getBool(k string, def bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(k)); err == nil {
		return b
	}
	return def
}

func getDuration(k string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(k)); err == nil {
		return d
	}
	return def
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
