// Package config loads bulkhead's engine configuration and work manifests.
//
// Configuration is resolved in layers: compiled defaults, then the YAML
// config file, then BULKHEAD_* environment variables. Durations are
// expressed in the file as integer milliseconds (or seconds for the quota
// window) to keep the YAML surface simple.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rshade/bulkhead/internal/engine/batch"
	"github.com/rshade/bulkhead/internal/engine/quota"
	"github.com/rshade/bulkhead/internal/logging"
)

// Environment variable overrides.
const (
	// EnvLogLevel overrides logging.level.
	EnvLogLevel = "BULKHEAD_LOG_LEVEL"

	// EnvLogFormat overrides logging.format.
	EnvLogFormat = "BULKHEAD_LOG_FORMAT"

	// EnvLogFile overrides logging.file.
	EnvLogFile = "BULKHEAD_LOG_FILE"

	// EnvQuotaLimit overrides quota.limit.
	EnvQuotaLimit = "BULKHEAD_QUOTA_LIMIT"

	// EnvQuotaWindow overrides quota.window_seconds.
	EnvQuotaWindow = "BULKHEAD_QUOTA_WINDOW_SECONDS"
)

// ErrConfigNotFound indicates the requested config file does not exist.
var ErrConfigNotFound = errors.New("config file not found")

// Config is the process-level bulkhead configuration.
type Config struct {
	Quota   QuotaConfig   `yaml:"quota"`
	Batch   BatchDefaults `yaml:"batch"`
	Logging LoggingConfig `yaml:"logging"`
}

// QuotaConfig configures the process-wide quota tracker.
type QuotaConfig struct {
	// Limit is the number of admissions allowed per window.
	Limit int `yaml:"limit"`

	// WindowSeconds is the rolling window length in seconds.
	WindowSeconds int `yaml:"window_seconds"`

	// MinSpacingMs is the minimum interval between admissions in
	// milliseconds.
	MinSpacingMs int `yaml:"min_spacing_ms"`
}

// NewTracker builds a quota tracker from this config.
func (q QuotaConfig) NewTracker(opts ...quota.Option) *quota.Tracker {
	opts = append(opts, quota.WithMinSpacing(time.Duration(q.MinSpacingMs)*time.Millisecond))
	return quota.NewTracker(q.Limit, time.Duration(q.WindowSeconds)*time.Second, opts...)
}

// BatchDefaults carries the file-level batch settings applied when a
// manifest does not override them.
type BatchDefaults struct {
	ChunkSize          int  `yaml:"chunk_size"`
	MaxConcurrency     int  `yaml:"max_concurrency"`
	RetryAttempts      int  `yaml:"retry_attempts"`
	RetryDelayMs       int  `yaml:"retry_delay_ms"`
	ChunkPauseMs       int  `yaml:"chunk_pause_ms"`
	EnableOptimization bool `yaml:"enable_optimization"`
	EnableProgress     bool `yaml:"enable_progress"`
}

// ToBatchConfig converts the file representation into the engine's config.
func (b BatchDefaults) ToBatchConfig() batch.Config {
	return batch.Config{
		ChunkSize:          b.ChunkSize,
		MaxConcurrency:     b.MaxConcurrency,
		RetryAttempts:      b.RetryAttempts,
		RetryDelay:         time.Duration(b.RetryDelayMs) * time.Millisecond,
		ChunkPause:         time.Duration(b.ChunkPauseMs) * time.Millisecond,
		EnableOptimization: b.EnableOptimization,
		EnableProgress:     b.EnableProgress,
	}
}

// LoggingConfig selects log level, format, and optional file output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// ToLoggingConfig converts to the logging package's config.
func (l LoggingConfig) ToLoggingConfig() logging.Config {
	return logging.Config{Level: l.Level, Format: l.Format, File: l.File}
}

// Default returns the compiled-in configuration.
func Default() Config {
	return Config{
		Quota: QuotaConfig{
			Limit:         quota.DefaultLimit,
			WindowSeconds: int(quota.DefaultWindow / time.Second),
			MinSpacingMs:  int(quota.DefaultMinSpacing / time.Millisecond),
		},
		Batch: BatchDefaults{
			ChunkSize:          batch.DefaultChunkSize,
			MaxConcurrency:     batch.DefaultMaxConcurrency,
			RetryAttempts:      batch.DefaultRetryAttempts,
			RetryDelayMs:       int(batch.DefaultRetryDelay / time.Millisecond),
			ChunkPauseMs:       int(batch.DefaultChunkPause / time.Millisecond),
			EnableOptimization: true,
			EnableProgress:     true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// DefaultPath returns the default config file location
// ($HOME/.bulkhead/config.yaml).
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".bulkhead", "config.yaml")
}

// Load reads the config file at path (or the default location when path is
// empty), layering it over the defaults and applying environment overrides.
// A missing default-location file is not an error; a missing explicit path
// is.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if unmarshalErr := yaml.Unmarshal(data, &cfg); unmarshalErr != nil {
				return Config{}, fmt.Errorf("parsing config %s: %w", path, unmarshalErr)
			}
		case os.IsNotExist(err):
			if explicit {
				return Config{}, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
			}
		default:
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv layers BULKHEAD_* environment variables over cfg.
func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv(EnvLogFile); v != "" {
		cfg.Logging.File = v
	}
	if v := os.Getenv(EnvQuotaLimit); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Quota.Limit = n
		}
	}
	if v := os.Getenv(EnvQuotaWindow); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Quota.WindowSeconds = n
		}
	}
}
