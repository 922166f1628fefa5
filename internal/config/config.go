// Package config loads pantry settings from an optional YAML file layered
// with PANTRY_* environment variables.
package config

import (
	"fmt"
	"os"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"pantry/internal/docstore"
	"pantry/internal/notify"
	"pantry/pkg/domain"
)

// Config is the complete pantry configuration. It is passed by value and
// never mutated after Load returns.
type Config struct {
	Docstore docstore.Config     `yaml:"docstore"`
	HTTP     HTTPConfig          `yaml:"http"`
	Log      LogConfig           `yaml:"log"`
	NATS     NATSConfig          `yaml:"nats"`
	Metrics  MetricsConfig       `yaml:"metrics"`
	Trace    TraceConfig         `yaml:"trace"`
	Defaults domain.FormDefaults `yaml:"defaults"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Level is a zap level name: debug, info, warn or error.
	Level string `yaml:"level"`
}

// NATSConfig configures change notifications.
type NATSConfig struct {
	// URL of the NATS server. Empty disables notifications.
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// Metrics exporters.
const (
	MetricsPrometheus = "prometheus"
	MetricsExpvar     = "expvar"
	MetricsNone       = "none"
)

// MetricsConfig selects how operation metrics are exported on /metrics.
type MetricsConfig struct {
	Exporter string `yaml:"exporter"`
}

// TraceConfig configures span output.
type TraceConfig struct {
	// File receives one JSON line per operation. Empty disables tracing.
	File string `yaml:"file"`
}

// DefaultConfig returns the built-in settings: sqlite at ./pantry.db, API on
// :8080, info logging, Prometheus metrics, no NATS, no tracing and
// kg/Vegetable form defaults.
func DefaultConfig() Config {
	return Config{
		Docstore: docstore.DefaultConfig(),
		HTTP:     HTTPConfig{Addr: ":8080"},
		Log:      LogConfig{Level: "info"},
		NATS:     NATSConfig{Subject: notify.DefaultSubject},
		Metrics:  MetricsConfig{Exporter: MetricsPrometheus},
		Defaults: domain.DefaultFormDefaults(),
	}
}

// Load builds the configuration from defaults, the YAML file at path (skipped
// when path is empty) and the environment, then validates it.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}
	cfg = cfg.WithEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WithEnv returns a copy of c overridden by any set PANTRY_* variables.
func (c Config) WithEnv() Config {
	c.Docstore = c.Docstore.WithEnv()
	setString(&c.HTTP.Addr, "PANTRY_HTTP_ADDR")
	setString(&c.Log.Level, "PANTRY_LOG_LEVEL")
	setString(&c.NATS.URL, "PANTRY_NATS_URL")
	setString(&c.NATS.Subject, "PANTRY_NATS_SUBJECT")
	setString(&c.Metrics.Exporter, "PANTRY_METRICS_EXPORTER")
	setString(&c.Trace.File, "PANTRY_TRACE_FILE")
	if v := os.Getenv("PANTRY_DEFAULT_UNIT"); v != "" {
		c.Defaults.Unit = domain.Unit(v)
	}
	if v := os.Getenv("PANTRY_DEFAULT_CATEGORY"); v != "" {
		c.Defaults.Category = domain.Category(v)
	}
	return c
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Docstore.Validate(); err != nil {
		return fmt.Errorf("docstore: %w", err)
	}
	if err := c.Defaults.Validate(); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	switch c.Metrics.Exporter {
	case MetricsPrometheus, MetricsExpvar, MetricsNone:
	default:
		return fmt.Errorf("metrics.exporter: unknown exporter %q", c.Metrics.Exporter)
	}
	return nil
}

// LogLevel parses Log.Level.
func (c Config) LogLevel() (zapcore.Level, error) {
	lvl, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}
