package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/rshade/bulkhead/internal/engine/batch"
	"github.com/rshade/bulkhead/internal/engine/work"
	"github.com/rshade/bulkhead/internal/simulate"
)

// ManifestSchemaConstraint is the semver range of manifest schema versions
// this build understands.
const ManifestSchemaConstraint = "^1"

// defaultManifestVersion is assumed when a manifest omits its version field.
const defaultManifestVersion = "1.0.0"

// Manifest validation errors.
var (
	ErrManifestNoItems            = errors.New("manifest contains no items")
	ErrManifestItemKey            = errors.New("manifest item is missing a key")
	ErrManifestItemKind           = errors.New("manifest item has an unsupported kind")
	ErrManifestVersion            = errors.New("manifest version is not valid semver")
	ErrManifestVersionUnsupported = errors.New("manifest schema version not supported")
)

// Manifest is a YAML work list: the ordered items of one batch run, optional
// batch setting overrides, and an optional simulation scenario for the
// built-in operation provider.
type Manifest struct {
	// Version is the manifest schema version, checked against
	// ManifestSchemaConstraint.
	Version string `yaml:"version"`

	// Items is the ordered work list.
	Items []work.Item `yaml:"items"`

	// Batch overrides the configured batch defaults for this run.
	Batch *BatchOverrides `yaml:"batch,omitempty"`

	// Simulate configures the built-in simulated operation provider.
	Simulate *simulate.Config `yaml:"simulate,omitempty"`
}

// BatchOverrides is the manifest-level partial batch config; nil fields keep
// the configured defaults.
type BatchOverrides struct {
	ChunkSize          *int  `yaml:"chunk_size,omitempty"`
	MaxConcurrency     *int  `yaml:"max_concurrency,omitempty"`
	RetryAttempts      *int  `yaml:"retry_attempts,omitempty"`
	RetryDelayMs       *int  `yaml:"retry_delay_ms,omitempty"`
	ChunkPauseMs       *int  `yaml:"chunk_pause_ms,omitempty"`
	EnableOptimization *bool `yaml:"enable_optimization,omitempty"`
	EnableProgress     *bool `yaml:"enable_progress,omitempty"`
}

// Apply layers the overrides onto cfg and returns the result.
func (o *BatchOverrides) Apply(cfg batch.Config) batch.Config {
	if o == nil {
		return cfg
	}
	if o.ChunkSize != nil {
		cfg.ChunkSize = *o.ChunkSize
	}
	if o.MaxConcurrency != nil {
		cfg.MaxConcurrency = *o.MaxConcurrency
	}
	if o.RetryAttempts != nil {
		cfg.RetryAttempts = *o.RetryAttempts
	}
	if o.RetryDelayMs != nil {
		cfg.RetryDelay = msToDuration(*o.RetryDelayMs)
	}
	if o.ChunkPauseMs != nil {
		cfg.ChunkPause = msToDuration(*o.ChunkPauseMs)
	}
	if o.EnableOptimization != nil {
		cfg.EnableOptimization = *o.EnableOptimization
	}
	if o.EnableProgress != nil {
		cfg.EnableProgress = *o.EnableProgress
	}
	return cfg
}

// LoadManifest reads and validates a work manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}

	return &m, nil
}

// Validate checks the manifest's schema version and items.
func (m *Manifest) Validate() error {
	if m.Version == "" {
		m.Version = defaultManifestVersion
	}

	ver, err := semver.NewVersion(m.Version)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrManifestVersion, m.Version)
	}

	constraint, err := semver.NewConstraint(ManifestSchemaConstraint)
	if err != nil {
		return fmt.Errorf("parsing schema constraint: %w", err)
	}
	if !constraint.Check(ver) {
		return fmt.Errorf("%w: %s (want %s)", ErrManifestVersionUnsupported, m.Version, ManifestSchemaConstraint)
	}

	if len(m.Items) == 0 {
		return ErrManifestNoItems
	}
	for i, item := range m.Items {
		if item.Key == "" {
			return fmt.Errorf("%w: item %d", ErrManifestItemKey, i)
		}
		if !item.Kind.Valid() {
			return fmt.Errorf("%w: item %d kind %q", ErrManifestItemKind, i, item.Kind)
		}
	}

	return nil
}

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
