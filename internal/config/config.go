package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	EventStoreSQL    = "sql"
	EventStoreMemory = "memory"
)

type Config struct {
	AppEnv              string        `env:"APP_ENV"               envDefault:"dev"`
	HTTPAddr            string        `env:"HTTP_ADDR"             envDefault:":8080"`
	DatabaseURL         string        `env:"DATABASE_URL"          envDefault:"file:gueststay.db?_pragma=foreign_keys(1)"`
	EventStore          string        `env:"EVENT_STORE"           envDefault:"sql"`
	CommandMaxAttempts  int           `env:"COMMAND_MAX_ATTEMPTS"  envDefault:"3"`
	CommandRetryBackoff time.Duration `env:"COMMAND_RETRY_BACKOFF" envDefault:"10ms"`
	LogLevel            string        `env:"LOG_LEVEL"             envDefault:"info"`
	GinMode             string        `env:"GIN_MODE"              envDefault:"debug"`
	WSAllowedOrigins    []string      `env:"WS_ALLOWED_ORIGINS"    envSeparator:","`
	ShutdownTimeout     time.Duration `env:"SHUTDOWN_TIMEOUT"      envDefault:"10s"`
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.AppEnv = strings.ToLower(strings.TrimSpace(cfg.AppEnv))
	cfg.EventStore = strings.ToLower(strings.TrimSpace(cfg.EventStore))

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		return fmt.Errorf("HTTP_ADDR must not be empty")
	}
	if cfg.EventStore != EventStoreSQL && cfg.EventStore != EventStoreMemory {
		return fmt.Errorf("EVENT_STORE must be one of: sql, memory")
	}
	if cfg.EventStore == EventStoreSQL && strings.TrimSpace(cfg.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL must be set when EVENT_STORE=sql")
	}
	if cfg.CommandMaxAttempts < 1 {
		return fmt.Errorf("COMMAND_MAX_ATTEMPTS must be >= 1")
	}
	if cfg.CommandRetryBackoff < 0 {
		return fmt.Errorf("COMMAND_RETRY_BACKOFF must be >= 0")
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return err
	}

	if isProdLike(cfg.AppEnv) {
		if cfg.EventStore == EventStoreMemory {
			return fmt.Errorf("in prod/release EVENT_STORE must be sql")
		}
		if len(cfg.WSAllowedOrigins) == 0 {
			return fmt.Errorf("in prod/release WS_ALLOWED_ORIGINS must be set")
		}
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return isProdLike(c.AppEnv)
}

// SlogLevel maps LOG_LEVEL to a slog level. Load has already validated it.
func (c *Config) SlogLevel() slog.Level {
	lvl, _ := parseLevel(c.LogLevel)
	return lvl
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL value %q", s)
	}
}
