// internal/config/config_test.go
package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "LOG_LEVEL", "STORE_BACKEND", "ROOM_TTL", "ROOM_CLEANUP_INTERVAL", "TURN_DURATION", "HISTORIAN_FLUSH_MS", "MAX_PLAYERS"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, logrus.DebugLevel, cfg.LogLevel)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, 24*time.Hour, cfg.RoomTTL)
	assert.Equal(t, time.Hour, cfg.CleanupInterval)
	assert.Equal(t, 30*time.Second, cfg.TurnDuration)
	assert.Equal(t, 500*time.Millisecond, cfg.Historian.FlushDelay)
	assert.Equal(t, "uno_actions", cfg.Historian.Queue)
	assert.Equal(t, 8, cfg.MaxPlayers)
	assert.Equal(t, 25, cfg.ApplyMaxAttempts)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("STORE_BACKEND", "redis")
	t.Setenv("TURN_DURATION", "45")
	t.Setenv("TURN_SWEEP_INTERVAL", "250ms")
	t.Setenv("GAME_INACTIVITY_TIMEOUT_SEC", "60")
	t.Setenv("MAX_PLAYERS", "not-a-number")
	t.Setenv("PG_HOST", "db")
	t.Setenv("PG_DATABASE", "uno")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, logrus.WarnLevel, cfg.LogLevel)
	assert.Equal(t, BackendRedis, cfg.StoreBackend)
	assert.Equal(t, 45*time.Second, cfg.TurnDuration)
	assert.Equal(t, 250*time.Millisecond, cfg.TurnSweepInterval)
	assert.Equal(t, time.Minute, cfg.Historian.Inactivity)
	assert.Equal(t, 8, cfg.MaxPlayers, "unparseable values fall back to the default")
	assert.Equal(t, "db", cfg.Postgres.Host)
	assert.Equal(t, "uno", cfg.Postgres.Database)

	assert.Equal(t, logrus.WarnLevel, cfg.NewLogger().GetLevel())
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("STORE_BACKEND", "etcd")
	_, err := Load()
	assert.ErrorContains(t, err, "STORE_BACKEND")

	t.Setenv("STORE_BACKEND", "")
	t.Setenv("LOG_LEVEL", "chatty")
	_, err = Load()
	assert.ErrorContains(t, err, "LOG_LEVEL")
}
