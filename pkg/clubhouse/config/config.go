// Package config loads clubhouse settings from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds process-wide settings for the server and the CLI.
type Config struct {
	DBDriver string `env:"CLUBHOUSE_DB_DRIVER" envDefault:"sqlite"`
	DBDSN    string `env:"CLUBHOUSE_DB_DSN"    envDefault:"clubhouse.db"`
	Port     string `env:"PORT"                envDefault:"8080"`
	GinMode  string `env:"GIN_MODE"`

	LogLevel  string `env:"CLUBHOUSE_LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"CLUBHOUSE_LOG_FORMAT" envDefault:"text"`
	LogFile   string `env:"CLUBHOUSE_LOG_FILE"`

	LockTimeout  time.Duration `env:"CLUBHOUSE_LOCK_TIMEOUT"  envDefault:"5s"`
	MaxRetries   uint64        `env:"CLUBHOUSE_MAX_RETRIES"   envDefault:"5"`
	RetryInitial time.Duration `env:"CLUBHOUSE_RETRY_INITIAL" envDefault:"20ms"`
	SlowQuery    time.Duration `env:"CLUBHOUSE_SLOW_QUERY"    envDefault:"200ms"`

	WebDistPath string `env:"CLUBHOUSE_WEB_DIST" envDefault:"./web/dist"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that env tags cannot express.
func (c Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported CLUBHOUSE_DB_DRIVER %q", c.DBDriver)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported CLUBHOUSE_LOG_FORMAT %q", c.LogFormat)
	}
	if c.LockTimeout <= 0 {
		return fmt.Errorf("CLUBHOUSE_LOCK_TIMEOUT must be positive")
	}
	return nil
}
