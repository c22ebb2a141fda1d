package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"POSTGRES_URL", "KAFKA_BROKERS", "MISSED_GRACE_DAYS", "CONSUMER_TOPICS", "CACHE_INVALIDATION_URL"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	require.Equal(t, ":8080", cfg.HTTPAddress)
	require.Empty(t, cfg.PostgresURL)
	require.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	require.Equal(t, []string{"session_events"}, cfg.ConsumerTopics)
	require.Equal(t, 3, cfg.MissedGraceDays)
	require.Equal(t, 50, cfg.SessionPageSize)
	require.Equal(t, 500, cfg.MaxSessionsPerPass)
	require.Equal(t, 72*time.Hour, cfg.ConsumerLookback)
	require.Empty(t, cfg.CacheInvalidationURL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("POSTGRES_URL", "postgres://u:p@db:5432/plans")
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("OUTBOX_POLL_INTERVAL", "500ms")
	t.Setenv("MISSED_GRACE_DAYS", "0")
	t.Setenv("SESSION_PAGE_SIZE", "20")
	t.Setenv("CONSUMER_LOOKBACK", "24h")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Load()
	require.Equal(t, "postgres://u:p@db:5432/plans", cfg.PostgresURL)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 500*time.Millisecond, cfg.OutboxPollInterval)
	require.Equal(t, 0, cfg.MissedGraceDays)
	require.Equal(t, 20, cfg.SessionPageSize)
	require.Equal(t, 24*time.Hour, cfg.ConsumerLookback)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("OUTBOX_BATCH_SIZE", "lots")
	t.Setenv("DLQ_BASE_DELAY", "-5s")
	t.Setenv("MISSED_GRACE_DAYS", "-2")
	t.Setenv("MAX_SESSIONS_PER_PASS", "0")

	cfg := Load()
	require.Equal(t, 25, cfg.OutboxBatchSize)
	require.Equal(t, time.Minute, cfg.DLQBaseDelay)
	require.Equal(t, 3, cfg.MissedGraceDays)
	require.Equal(t, 500, cfg.MaxSessionsPerPass)
}
