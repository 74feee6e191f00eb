package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GIN_MODE", "release")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8083", cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
	assert.Equal(t, uint64(3), cfg.StoreAttempts)
	assert.Equal(t, "lineup.events", cfg.AMQPExchange)
	assert.Empty(t, cfg.RedisURL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GIN_MODE", "release")
	t.Setenv("LINEUP_PORT", "9000")
	t.Setenv("LINEUP_STORE_TIMEOUT", "250ms")
	t.Setenv("LINEUP_REDIS_URL", "redis://localhost:6379/1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.StoreTimeout)
	assert.Equal(t, "redis://localhost:6379/1", cfg.RedisURL)
}
