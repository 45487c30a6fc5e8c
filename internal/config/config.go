// Package config loads tablekit settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/roach88/tablekit/internal/backend/sqlite"
)

// Config holds settings shared by the CLI commands. Command-line flags
// override these values.
type Config struct {
	// DBDir is the directory holding database files.
	DBDir string `env:"TABLEKIT_DB_DIR" envDefault:"."`
	// DBName is the database name used when the schema file sets none.
	DBName string `env:"TABLEKIT_DB_NAME" envDefault:"database"`
	// Driver selects the SQLite driver: "sqlite3" (cgo) or "sqlite" (pure Go).
	Driver string `env:"TABLEKIT_DRIVER" envDefault:"sqlite3"`
	// BusyTimeout bounds SQLite lock waits.
	BusyTimeout time.Duration `env:"TABLEKIT_BUSY_TIMEOUT" envDefault:"5s"`
	// OTelEndpoint is the OTLP/HTTP trace endpoint; empty disables tracing.
	OTelEndpoint string `env:"TABLEKIT_OTEL_ENDPOINT"`
}

// Load reads Config from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// SQLite returns the backend configuration.
func (c Config) SQLite() sqlite.Config {
	return sqlite.Config{
		Dir:         c.DBDir,
		Driver:      c.Driver,
		BusyTimeout: c.BusyTimeout,
	}
}
