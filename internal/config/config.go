// Package config loads run settings from YAML, .env files and the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"quantbrain/internal/domain"
)

// Environment variables that override file settings.
const (
	EnvPostgresDSN   = "QB_POSTGRES_DSN"
	EnvClickhouseDSN = "QB_CLICKHOUSE_DSN"
	EnvLogLevel      = "QB_LOG_LEVEL"
	EnvServerAddr    = "QB_SERVER_ADDR"
	EnvMetricsAddr   = "QB_METRICS_ADDR"
)

// Defaults for process settings.
const (
	DefaultLogLevel    = "info"
	DefaultServerAddr  = ":8080"
	DefaultMetricsAddr = ":9090"
)

// Storage selects the persistence backends.
type Storage struct {
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
	UseMemory     bool   `yaml:"use_memory"`
}

// Memory reports whether in-memory stores should be used.
func (s Storage) Memory() bool {
	return s.UseMemory || (s.PostgresDSN == "" && s.ClickhouseDSN == "")
}

// Server configures the HTTP listeners.
type Server struct {
	Addr        string `yaml:"addr"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// Config collects every configuration leaf. Backtest keys sit at the top level.
type Config struct {
	Backtest domain.BacktestConfig `yaml:",inline"`
	Storage  Storage               `yaml:"storage"`
	Server   Server                `yaml:"server"`
	LogLevel string                `yaml:"log_level"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Backtest: domain.DefaultBacktestConfig(),
		Server: Server{
			Addr:        DefaultServerAddr,
			MetricsAddr: DefaultMetricsAddr,
		},
		LogLevel: DefaultLogLevel,
	}
}

// Load builds a Config from defaults, the YAML file at path (if non-empty)
// and environment overrides, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := Decode(file, cfg); err != nil {
			return nil, err
		}
	}

	cfg.ApplyEnv()
	return cfg, nil
}

// Decode reads YAML from r over the values already in cfg.
// Unknown keys are rejected.
func Decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode yaml: %w", err)
	}
	return nil
}

// ApplyEnv overrides settings from QB_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvPostgresDSN); v != "" {
		c.Storage.PostgresDSN = v
	}
	if v := os.Getenv(EnvClickhouseDSN); v != "" {
		c.Storage.ClickhouseDSN = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv(EnvServerAddr); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(EnvMetricsAddr); v != "" {
		c.Server.MetricsAddr = v
	}
}

// LoadDotEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are ignored.
// With no paths, ".env" in the working directory is tried.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Save persists a Config to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
