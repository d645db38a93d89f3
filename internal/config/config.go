package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v8"
)

type Config struct {
	// HTTP Server
	Port      string `env:"PORT" envDefault:"8081"`
	RateLimit int    `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`

	// Storage
	DataBackend  string `env:"DATA_BACKEND" envDefault:"sqlite"`
	SQLiteDBPath string `env:"SQLITE_DB_PATH" envDefault:"./data/salvadanaio.db"`

	// AMQP
	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"salvadanaio"`
	AMQPQueue    string `env:"AMQP_QUEUE" envDefault:"ledger_repairs"`

	// Ledger
	SyncMode string `env:"LEDGER_SYNC_MODE" envDefault:"best_effort"`

	// Worker
	GenerationInterval time.Duration `env:"GENERATION_INTERVAL" envDefault:"1h"`
	RepairDedupeTTL    time.Duration `env:"REPAIR_DEDUPE_TTL" envDefault:"10m"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

var (
	validBackends  = []string{"memory", "sqlite"}
	validSyncModes = []string{"best_effort", "strict"}
	validLogLevels = []string{"debug", "info", "warn", "error"}
)

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimit < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must not be negative", c.RateLimit))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if !slices.Contains(validSyncModes, strings.ToLower(c.SyncMode)) {
		errors = append(errors, fmt.Sprintf("invalid ledger sync mode '%s': must be one of %v", c.SyncMode, validSyncModes))
	}

	if c.GenerationInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid generation interval %v: must be at least 1 minute", c.GenerationInterval))
	} else if c.GenerationInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid generation interval %v: must be at most 24 hours", c.GenerationInterval))
	}

	if c.RepairDedupeTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid repair dedupe TTL %v: must not be negative", c.RepairDedupeTTL))
	}

	if !slices.Contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}
