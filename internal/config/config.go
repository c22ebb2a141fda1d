// Package config centralises configuration parsing for the plan-matching binaries.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures runtime configuration values shared by cmd/api,
// cmd/consumer and cmd/dlqmanager.
type Config struct {
	HTTPAddress    string
	MetricsAddress string
	CORSOrigin     string
	// PostgresURL selects the Postgres store. Empty means the in-memory store.
	PostgresURL        string
	KafkaBrokers       []string
	SchemaRegistryURL  string
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	JWTSecret          string
	JWTIssuer          string
	DLQPollInterval    time.Duration // Interval between DLQ polling iterations.
	DLQMaxRetries      int           // Maximum number of DLQ retry attempts before quarantine.
	DLQBaseDelay       time.Duration // Base delay used for exponential backoff.

	ConsumerGroupID  string
	ConsumerTopics   []string
	ConsumerLookback time.Duration

	CacheInvalidationURL   string
	CacheInvalidationToken string
	HTTPTimeout            time.Duration

	MissedGraceDays    int
	SessionPageSize    int
	MaxSessionsPerPass int
	LogLevel           string
}

// Load reads environment variables into Config, applying sensible defaults for local dev.
// Unparseable values fall back to the default.
func Load() Config {
	cfg := Config{
		HTTPAddress:            getEnv("HTTP_ADDRESS", ":8080"),
		MetricsAddress:         getEnv("METRICS_ADDRESS", ":9102"),
		CORSOrigin:             os.Getenv("CORS_ORIGIN"),
		PostgresURL:            os.Getenv("POSTGRES_URL"),
		SchemaRegistryURL:      getEnv("SCHEMA_REGISTRY_URL", "http://schema-registry:8081"),
		OutboxPollInterval:     getDurationEnv("OUTBOX_POLL_INTERVAL", 2*time.Second),
		OutboxBatchSize:        getPositiveIntEnv("OUTBOX_BATCH_SIZE", 25),
		JWTSecret:              getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTIssuer:              getEnv("JWT_ISSUER", "sportme.identity"),
		DLQPollInterval:        getDurationEnv("DLQ_POLL_INTERVAL", 30*time.Second),
		DLQMaxRetries:          getPositiveIntEnv("DLQ_MAX_RETRIES", 5),
		DLQBaseDelay:           getDurationEnv("DLQ_BASE_DELAY", time.Minute),
		ConsumerGroupID:        getEnv("CONSUMER_GROUP_ID", "plan-matching"),
		ConsumerLookback:       getDurationEnv("CONSUMER_LOOKBACK", 72*time.Hour),
		CacheInvalidationURL:   os.Getenv("CACHE_INVALIDATION_URL"),
		CacheInvalidationToken: os.Getenv("CACHE_INVALIDATION_TOKEN"),
		HTTPTimeout:            getDurationEnv("HTTP_TIMEOUT", 5*time.Second),
		MissedGraceDays:        getNonNegativeIntEnv("MISSED_GRACE_DAYS", 3),
		SessionPageSize:        getPositiveIntEnv("SESSION_PAGE_SIZE", 50),
		MaxSessionsPerPass:     getPositiveIntEnv("MAX_SESSIONS_PER_PASS", 500),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
	}

	cfg.KafkaBrokers = splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092"))
	cfg.ConsumerTopics = splitAndTrim(getEnv("CONSUMER_TOPICS", "session_events"))
	return cfg
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}

func getPositiveIntEnv(key string, fallback int) int {
	if v := getIntEnv(key, fallback); v > 0 {
		return v
	}
	return fallback
}

func getNonNegativeIntEnv(key string, fallback int) int {
	if v := getIntEnv(key, fallback); v >= 0 {
		return v
	}
	return fallback
}
