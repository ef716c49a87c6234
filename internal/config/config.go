// Package config loads gymlog configuration.
//
// Values are layered, lowest precedence first: defaults, the YAML file named
// by GYMLOG_CONFIG, then GYMLOG_-prefixed environment variables. Command-line
// flags are applied on top by the cli package.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/roach88/gymlog/internal/diff"
)

const (
	envPrefix = "GYMLOG_"
	envFile   = "GYMLOG_CONFIG"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the process configuration.
type Config struct {
	// DBPath is the SQLite database file.
	DBPath string `koanf:"db_path"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Heartbeat emits a no-change event when a pass detects nothing.
	Heartbeat bool `koanf:"heartbeat"`

	// DiffPolicy is "always" or "modified".
	DiffPolicy string `koanf:"diff_policy"`

	// HTTPAddr is the listen address of the serve command.
	HTTPAddr string `koanf:"http_addr"`

	// ReportLimit is the default row count of top-N reports.
	ReportLimit int `koanf:"report_limit"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		DBPath:      "gymlog.db",
		LogLevel:    "info",
		Heartbeat:   true,
		DiffPolicy:  string(diff.PolicyAlways),
		HTTPAddr:    ":8080",
		ReportLimit: 10,
	}
}

// Load builds a Config from defaults, the optional file and the environment.
func Load(_ context.Context) (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv(envFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// GYMLOG_DB_PATH -> db_path. Keys are flat, so underscores are kept.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load config env: %w", err)
	}
	// GYMLOG_CONFIG names the file; it is not a key.
	k.Delete("config")

	cfg := *New()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field values.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("%w: db_path must not be empty", ErrInvalidConfig)
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("%w: http_addr must not be empty", ErrInvalidConfig)
	}
	if c.ReportLimit <= 0 {
		return fmt.Errorf("%w: report_limit must be positive, got %d", ErrInvalidConfig, c.ReportLimit)
	}
	if _, err := diff.ParsePolicy(c.DiffPolicy); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Policy returns the parsed diff policy. Call after Validate.
func (c *Config) Policy() diff.Policy {
	return diff.Policy(c.DiffPolicy)
}

// ParseLevel maps a log level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
