// Package config handles YAML configuration loading with environment
// variable expansion for the board-watch engine.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"go.yaml.in/yaml/v3"
)

// Config is the top-level engine configuration.
type Config struct {
	Server     ServerConfig      `yaml:"server"`
	Upstream   UpstreamConfig    `yaml:"upstream"`
	RateLimit  RateLimitConfig   `yaml:"rate_limit"`
	Cache      CacheConfig       `yaml:"cache"`
	Telemetry  TelemetryConfig   `yaml:"telemetry"`
	Breaker    BreakerConfig     `yaml:"circuit_breaker"`
	Boards     []BoardEntry      `yaml:"boards"`
}

// ServerConfig holds the HTTP surface settings (health, metrics, SSE).
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// UpstreamConfig controls how the HTTP client facade talks to a.4cdn.org.
type UpstreamConfig struct {
	UseHTTPS   bool `yaml:"use_https"`
	MaxRetries int  `yaml:"max_retries"`
}

// RateLimitConfig configures the sliding-window limiter (spec.md Section
// 4.2 Open Question (a): the reference fixes these as constants; this
// engine exposes them as configuration).
type RateLimitConfig struct {
	Permits int           `yaml:"permits"`
	Window  time.Duration `yaml:"window"`
}

// CacheConfig configures the response cache's eviction TTL.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`
	SampleRate float64 `yaml:"sample_rate"`
}

// BreakerConfig configures the per-board circuit breaker enrichment.
type BreakerConfig struct {
	Enabled        bool          `yaml:"enabled"`
	ErrorThreshold float64       `yaml:"error_threshold"`
	MinSamples     int           `yaml:"min_samples"`
	WindowSeconds  int           `yaml:"window_seconds"`
	OpenTimeout    time.Duration `yaml:"open_timeout"`
}

// BoardEntry is one board subscription to bootstrap at startup.
type BoardEntry struct {
	Name          string `yaml:"name"`
	RefreshRateMs int64  `yaml:"refresh_rate_ms"`
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnv replaces ${VAR} patterns with environment variable values,
// leaving unset variables untouched so a missing value fails loudly at
// whatever uses the literal string rather than silently as an empty one.
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := string(match[2 : len(match)-1])
		if val, ok := os.LookupEnv(varName); ok {
			return []byte(val)
		}
		return match
	})
}

// Load reads and parses a YAML config file, expanding environment
// variables, over a set of sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	data = expandEnv(data)

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Default returns the engine's built-in defaults, matching spec.md's
// named constants: 1 permit per 1000ms, 1 hour cache TTL, 10s refresh.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    0, // SSE streams hold the connection open indefinitely
			ShutdownTimeout: 10 * time.Second,
		},
		Upstream: UpstreamConfig{
			UseHTTPS:   false,
			MaxRetries: 5,
		},
		RateLimit: RateLimitConfig{
			Permits: 1,
			Window:  time.Second,
		},
		Cache: CacheConfig{
			TTL: time.Hour,
		},
		Breaker: BreakerConfig{
			Enabled:        true,
			ErrorThreshold: 0.5,
			MinSamples:     5,
			WindowSeconds:  60,
			OpenTimeout:    30 * time.Second,
		},
	}
}
