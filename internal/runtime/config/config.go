package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"

	errspkg "github.com/drblury/simflow/internal/runtime/errors"
)

// Config groups the framework-level settings of a simulation run. Module
// parameters live in Sections; this struct only carries the ambient concerns
// every run has regardless of which modules are loaded.
type Config struct {
	// LogLevel selects the minimum level emitted by the default logger.
	// Supported values: "debug", "info", "warn", "error".
	LogLevel string `env:"SIMFLOW_LOG_LEVEL" envDefault:"info"`

	// MetricsEnabled exposes Prometheus metrics over HTTP for the duration
	// of the run.
	MetricsEnabled bool `env:"SIMFLOW_METRICS_ENABLED"`
	// MetricsPort is the port where Prometheus metrics will be exposed.
	MetricsPort int `env:"SIMFLOW_METRICS_PORT" envDefault:"9090"`

	// TracingEnabled wraps every dispatch in an OpenTelemetry span.
	TracingEnabled bool `env:"SIMFLOW_TRACING_ENABLED"`

	// IntrospectEnabled exposes the pipeline state (modules, bindings,
	// geometry, dispatch counters) as a JSON API while the run lasts.
	IntrospectEnabled bool `env:"SIMFLOW_INTROSPECT_ENABLED"`
	// IntrospectPort is the port where the introspection API will be exposed.
	// Defaults to 8081.
	IntrospectPort int `env:"SIMFLOW_INTROSPECT_PORT" envDefault:"8081"`
	// IntrospectCORSAllowedOrigins specifies allowed origins for CORS. Use "*"
	// for development or specific origins like "https://example.com" for
	// production. Empty disables CORS headers.
	IntrospectCORSAllowedOrigins []string `env:"SIMFLOW_INTROSPECT_CORS_ORIGINS"`
}

// ParseEnv loads configuration from SIMFLOW_* environment variables.
func ParseEnv(cfg *Config) error {
	if cfg == nil {
		return errspkg.ErrConfigRequired
	}
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog.Level. Unknown values fall back to
// info; Validate is where they get reported.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate checks that the configuration holds usable values. All problems
// are reported at once.
func (c *Config) Validate() error {
	var errs []error

	errs = append(errs, c.validateLogLevel()...)
	errs = append(errs, c.validatePorts()...)

	return errors.Join(errs...)
}

func (c *Config) validateLogLevel() []error {
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
		return nil
	}
	return []error{fmt.Errorf("logging: unknown level %q", c.LogLevel)}
}

func (c *Config) validatePorts() []error {
	var errs []error
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		errs = append(errs, fmt.Errorf("metrics: invalid port %d", c.MetricsPort))
	}
	if c.IntrospectPort < 0 || c.IntrospectPort > 65535 {
		errs = append(errs, fmt.Errorf("introspection: invalid port %d", c.IntrospectPort))
	}
	return errs
}

// ValidateConfig is a convenience function to validate a config pointer.
// Returns nil if the config is valid; failures come back as a single
// ConfigValidationError wrapping the joined field errors.
func ValidateConfig(c *Config) error {
	if c == nil {
		return errspkg.ErrConfigRequired
	}
	return errspkg.NewConfigValidationError(c.Validate())
}
