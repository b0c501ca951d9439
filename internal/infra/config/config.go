package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env              string
	StorageMode      string
	PostgresDSN      string
	RedisAddr        string
	KafkaBrokers     []string
	KafkaTopic       string
	ListenBackoff    time.Duration
	ListenBackoffMax time.Duration
	SweepInterval    time.Duration
}

// Load parses configuration from the current environment.
func Load() (Config, error) {
	cfg := Config{
		Env:         getEnv("APP_ENV", "dev"),
		StorageMode: strings.ToLower(getEnv("STORAGE_MODE", "postgres")),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		RedisAddr:   getEnv("REDIS_ADDR", ""),
		KafkaTopic:  getEnv("KAFKA_MARK_TOPIC", "transaction-marks"),
	}
	brokers := getEnv("KAFKA_BROKERS", "")
	if brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	backoff, err := parseDurationEnv("LISTEN_BACKOFF", 500*time.Millisecond)
	if err != nil {
		return Config{}, err
	}
	cfg.ListenBackoff = backoff

	backoffMax, err := parseDurationEnv("LISTEN_BACKOFF_MAX", 30*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg.ListenBackoffMax = backoffMax

	sweep, err := parseDurationEnv("SWEEP_INTERVAL", 5*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg.SweepInterval = sweep

	switch cfg.StorageMode {
	case "postgres":
		if cfg.PostgresDSN == "" {
			return Config{}, fmt.Errorf("POSTGRES_DSN is required in postgres mode")
		}
	case "memory":
	default:
		return Config{}, fmt.Errorf("invalid STORAGE_MODE: %q", cfg.StorageMode)
	}
	if cfg.ListenBackoff <= 0 || cfg.ListenBackoffMax < cfg.ListenBackoff {
		return Config{}, fmt.Errorf("listener backoff bounds are inconsistent")
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}
