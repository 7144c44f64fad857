package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-key-for-testing-purposes")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "storefront-events", cfg.Kafka.Topic)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 15*time.Minute, cfg.Redis.TTL)
	assert.True(t, cfg.Kafka.Enabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-key-for-testing-purposes")
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("KAFKA_ENABLED", "false")
	t.Setenv("CART_CACHE_TTL", "2m")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, 2*time.Minute, cfg.Redis.TTL)
	assert.Equal(t, 3, cfg.Redis.DB)
}

func TestLoad_BadValuesFallBack(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-key-for-testing-purposes")
	t.Setenv("REDIS_DB", "three")
	t.Setenv("SHUTDOWN_TIMEOUT", "soon")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Redis.DB)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()

	assert.ErrorIs(t, err, ErrMissingJWTSecret)
}
