package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envVars = []string{
	"APP_ENV", "LOG_LEVEL", "LOG_FORMAT", "STUDIOBOOK_VERSION", "HTTP_ADDR", "JWT_SECRET",
	"CORS_ALLOWED_ORIGINS", "DATABASE_URL", "DATABASE_REPLICA_URL", "DATABASE_MAX_CONNS",
	"SQLITE_PATH", "REDIS_URL", "SERVICE_TYPE_CACHE_TTL", "EVENT_BROKER", "RABBITMQ_URL",
	"EVENTS_EXCHANGE", "KAFKA_BROKERS", "KAFKA_TOPIC", "OUTBOX_POLL_INTERVAL",
	"OUTBOX_BATCH_SIZE", "OUTBOX_MAX_RETRIES", "OUTBOX_RETENTION_DAYS",
	"OUTBOX_CLEANUP_INTERVAL", "OUTBOX_STATS_INTERVAL", "OUTBOX_PROCESSOR_ENABLED", "WORKER_HEALTH_ADDR",
	"NOTIFY_BREAKER_MAX_FAILURES", "NOTIFY_BREAKER_TIMEOUT", "DEFAULT_CREDITS_REQUIRED",
	"MAX_OCCURRENCES",
}

// clearEnv blanks every variable Load reads for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range envVars {
		t.Setenv(v, "")
		os.Unsetenv(v)
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, BrokerNone, cfg.EventBroker)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigin)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 5*time.Minute, cfg.ServiceTypeCacheTTL)
	assert.Equal(t, 500*time.Millisecond, cfg.OutboxPollInterval)
	assert.Equal(t, 100, cfg.OutboxBatchSize)
	assert.True(t, cfg.OutboxProcessorEnabled)
	assert.Equal(t, time.Minute, cfg.OutboxStatsInterval)
	assert.Equal(t, uint32(5), cfg.NotifyBreakerMaxFailures)
	assert.Equal(t, 1, cfg.DefaultCreditsRequired)
	assert.Equal(t, 260, cfg.MaxOccurrences)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/studiobook")
	t.Setenv("EVENT_BROKER", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("OUTBOX_POLL_INTERVAL", "2s")
	t.Setenv("OUTBOX_PROCESSOR_ENABLED", "false")
	t.Setenv("DEFAULT_CREDITS_REQUIRED", "2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "postgres://u:p@db:5432/studiobook", cfg.DatabaseURL)
	assert.Equal(t, BrokerKafka, cfg.EventBroker)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 2*time.Second, cfg.OutboxPollInterval)
	assert.False(t, cfg.OutboxProcessorEnabled)
	assert.Equal(t, 2, cfg.DefaultCreditsRequired)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("OUTBOX_BATCH_SIZE", "lots")
	t.Setenv("OUTBOX_POLL_INTERVAL", "soon")
	t.Setenv("OUTBOX_PROCESSOR_ENABLED", "maybe")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.OutboxBatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.OutboxPollInterval)
	assert.True(t, cfg.OutboxProcessorEnabled)
}

func TestLoad_NegativeBreakerThresholdClamps(t *testing.T) {
	clearEnv(t)
	t.Setenv("NOTIFY_BREAKER_MAX_FAILURES", "-3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, uint32(0), cfg.NotifyBreakerMaxFailures)
}
