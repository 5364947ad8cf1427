// Package config loads the explicit configuration structure passed to
// every component at construction time. Nothing reads the environment
// after startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreBackendFile     = "file"
	StoreBackendPostgres = "postgres"
)

type Config struct {
	Port    int
	DataDir string

	// APIBaseURL is the log service boundary the watcher polls.
	APIBaseURL   string
	PollInterval time.Duration

	StoreBackend string
	PostgresDSN  string
	// SyncWrites makes the file backend fsync every document before an
	// append is acknowledged as durable.
	SyncWrites bool

	CORSOrigins       []string
	MaxBodyBytes      int64
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
}

func FromEnv() (Config, error) {
	cfg := Config{
		Port:              envInt("PORT", 8080),
		DataDir:           envString("MERKLELOG_DATA_DIR", "data"),
		APIBaseURL:        envString("MERKLELOG_API", "http://127.0.0.1:8080"),
		PollInterval:      envDuration("MERKLELOG_POLL_INTERVAL", time.Minute),
		StoreBackend:      envString("MERKLELOG_STORE", StoreBackendFile),
		PostgresDSN:       envString("MERKLELOG_POSTGRES_DSN", ""),
		SyncWrites:        envBool("MERKLELOG_SYNC_WRITES", false),
		CORSOrigins:       envStrings("MERKLELOG_CORS_ORIGINS", []string{"*"}),
		MaxBodyBytes:      int64(envInt("MERKLELOG_MAX_BODY_BYTES", 1<<20)),
		RateLimitRequests: envInt("MERKLELOG_RATE_LIMIT_REQUESTS", 0),
		RateLimitWindow:   envDuration("MERKLELOG_RATE_LIMIT_WINDOW", time.Minute),
		RedisAddr:         envString("MERKLELOG_REDIS_ADDR", ""),
		RedisPassword:     envString("MERKLELOG_REDIS_PASSWORD", ""),
		RedisDB:           envInt("MERKLELOG_REDIS_DB", 0),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	switch c.StoreBackend {
	case StoreBackendFile:
		if c.DataDir == "" {
			return fmt.Errorf("data dir is required for the file backend")
		}
	case StoreBackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
	return nil
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envStrings(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
