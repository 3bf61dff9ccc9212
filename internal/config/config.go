// Package config loads keyringdb configuration from YAML or TOML files.
//
// The format is chosen by file extension (.yaml/.yml or .toml). ${VAR}
// references are expanded from the environment before parsing; unset
// variables expand to the empty string.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/roach88/keyringdb/internal/store"
)

// Config is the complete keyringdb configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database" toml:"database"`
	Storage  StorageConfig  `yaml:"storage" toml:"storage"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Metrics  MetricsConfig  `yaml:"metrics" toml:"metrics"`
}

// DatabaseConfig selects and tunes the SQLite store.
type DatabaseConfig struct {
	Path          string `yaml:"path" toml:"path"`
	Driver        string `yaml:"driver" toml:"driver"`
	ReadOnly      bool   `yaml:"read_only" toml:"read_only"`
	MaxOpenConns  int    `yaml:"max_open_conns" toml:"max_open_conns"`
	BusyTimeoutMS int    `yaml:"busy_timeout_ms" toml:"busy_timeout_ms"`
}

// StorageConfig holds the directory data/<name> addresses are served from.
type StorageConfig struct {
	BlobRoot string `yaml:"blob_root" toml:"blob_root"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// ServerConfig holds the HTTP listen address.
type ServerConfig struct {
	Addr string `yaml:"addr" toml:"addr"`
}

// MetricsConfig holds metrics endpoint configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:          "keyring.db",
			Driver:        store.DriverSQLite3,
			MaxOpenConns:  4,
			BusyTimeoutMS: 5000,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Server:  ServerConfig{Addr: "127.0.0.1:8080"},
		Metrics: MetricsConfig{Path: "/metrics"},
	}
}

// Load reads the file at path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	expanded := expandEnvVars(string(data))

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(strings.NewReader(expanded))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && err != io.EOF {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case ".toml":
		md, err := toml.Decode(expanded, cfg)
		if err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("parsing config file: unknown key %q", undecoded[0].String())
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q (want .yaml, .yml or .toml)", ext)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} with the variable's value.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// Validate returns the first problem found.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	switch c.Database.Driver {
	case store.DriverSQLite3, store.DriverSQLite:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", store.DriverSQLite3, store.DriverSQLite, c.Database.Driver)
	}
	if c.Database.MaxOpenConns < 0 {
		return fmt.Errorf("database.max_open_conns must not be negative")
	}
	if c.Database.BusyTimeoutMS < 0 {
		return fmt.Errorf("database.busy_timeout_ms must not be negative")
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}
	return nil
}

// StoreOptions converts the database section for store.Open.
func (d DatabaseConfig) StoreOptions() store.Options {
	return store.Options{
		Driver:       d.Driver,
		ReadOnly:     d.ReadOnly,
		MaxOpenConns: d.MaxOpenConns,
		BusyTimeout:  time.Duration(d.BusyTimeoutMS) * time.Millisecond,
	}
}

// Handler builds the slog handler the logging section describes.
func (l LoggingConfig) Handler(w io.Writer) (slog.Handler, error) {
	level, err := parseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.NewJSONHandler(w, opts), nil
	}
	return slog.NewTextHandler(w, opts), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}
