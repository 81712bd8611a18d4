package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Load_Defaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "POSTGRES_DSN", "POSTGRES_MAX_CONNS", "REDIS_ADDR", "KAFKA_BROKERS", "LOCK_SHARDS", "SEED_DEMO_DATA"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Empty(t, cfg.PostgresDSN)
	assert.Equal(t, 8, cfg.PGMaxConns)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, 256, cfg.LockShards)
	assert.Equal(t, 5*time.Second, cfg.LockTimeout)
	assert.True(t, cfg.SeedDemoData)
	require.NoError(t, cfg.Validate())
}

func Test_Load_Overrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("LOCK_TIMEOUT", "250ms")
	t.Setenv("WALLET_UNAVAILABLE_RATE", "0")
	t.Setenv("PROCESS_WORKERS", "not-a-number")
	t.Setenv("SEED_DEMO_DATA", "false")

	cfg := Load()

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 250*time.Millisecond, cfg.LockTimeout)
	assert.Zero(t, cfg.UnavailableRate)
	assert.Equal(t, 4, cfg.ProcessWorkers)
	assert.False(t, cfg.SeedDemoData)
}

func Test_Validate(t *testing.T) {
	cfg := Load()
	cfg.LockShards = 0
	cfg.DeclineRate = 1.5

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOCK_SHARDS")
	assert.Contains(t, err.Error(), "CREDIT_CARD_DECLINE_RATE")
}
