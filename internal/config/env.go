// Package config loads rewind settings from REWIND_* environment variables.
// Command-line flags override these values.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the env-derived defaults shared by every command.
type Config struct {
	// Frame interval when driving the engine from the wall clock.
	Tick time.Duration `env:"REWIND_TICK" envDefault:"16ms"`

	LogLevel string `env:"REWIND_LOG_LEVEL" envDefault:"info"`
	Format   string `env:"REWIND_FORMAT" envDefault:"text"`

	// TraceDB is the trace recorder database. Empty disables recording.
	TraceDB string `env:"REWIND_TRACE_DB"`

	// Seed for the generated demo playfield.
	Seed uint64 `env:"REWIND_SEED" envDefault:"1"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses and validates a Config.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the parsed values.
func (c Config) Validate() error {
	if c.Tick <= 0 {
		return fmt.Errorf("REWIND_TICK must be positive, got %v", c.Tick)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.Format {
	case "text", "json":
	default:
		return fmt.Errorf("REWIND_FORMAT must be text or json, got %q", c.Format)
	}
	return nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}
