// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jason-s-yu/uno/internal/database"
	"github.com/jason-s-yu/uno/internal/historian"
	"github.com/sirupsen/logrus"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config is everything the binaries read from the environment.
type Config struct {
	Port     string
	LogLevel logrus.Level

	StoreBackend    string
	RedisAddr       string
	RedisDB         int
	RoomTTL         time.Duration
	CleanupInterval time.Duration // how often rooms idle past RoomTTL are deleted

	Postgres database.Config

	Historian historian.Config

	ApplyMaxAttempts  int
	TurnDuration      time.Duration
	TurnSweepInterval time.Duration
	MaxPlayers        int
}

// Load reads Config from the environment, applying defaults for anything unset.
func Load() (Config, error) {
	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "debug"))
	if err != nil {
		return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	cfg := Config{
		Port:            getEnv("PORT", "8080"),
		LogLevel:        level,
		StoreBackend:    getEnv("STORE_BACKEND", BackendMemory),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		RoomTTL:         getEnvDuration("ROOM_TTL", 24*time.Hour),
		CleanupInterval: getEnvDuration("ROOM_CLEANUP_INTERVAL", time.Hour),
		Postgres: database.Config{
			User:     os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Database: os.Getenv("PG_DATABASE"),
		},
		Historian: historian.Config{
			Queue:      getEnv("HISTORIAN_QUEUE_NAME", "uno_actions"),
			BatchSize:  getEnvInt("HISTORIAN_BATCH_SIZE", 20),
			FlushDelay: time.Duration(getEnvInt("HISTORIAN_FLUSH_MS", 500)) * time.Millisecond,
			Inactivity: time.Duration(getEnvInt("GAME_INACTIVITY_TIMEOUT_SEC", 600)) * time.Second,
		},
		ApplyMaxAttempts:  getEnvInt("APPLY_MAX_ATTEMPTS", 25),
		TurnDuration:      getEnvDuration("TURN_DURATION", 30*time.Second),
		TurnSweepInterval: getEnvDuration("TURN_SWEEP_INTERVAL", time.Second),
		MaxPlayers:        getEnvInt("MAX_PLAYERS", 8),
	}

	switch cfg.StoreBackend {
	case BackendMemory, BackendRedis, BackendPostgres:
	default:
		return Config{}, fmt.Errorf("STORE_BACKEND: unknown backend %q", cfg.StoreBackend)
	}
	return cfg, nil
}

// NewLogger returns a text logger at cfg's level.
func (c Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.LogLevel)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logger
}

// getEnv retrieves an environment variable's value or returns a default.
func getEnv(key, defVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defVal
}

// getEnvInt retrieves an integer value from an environment variable or returns a default value.
func getEnvInt(key string, defVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defVal
	}
	return i
}

// getEnvDuration accepts Go duration syntax ("30s") or a bare number of seconds.
func getEnvDuration(key string, defVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defVal
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defVal
}
