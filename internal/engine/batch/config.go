package batch

import (
	"errors"
	"fmt"
	"time"
)

// Default batch configuration.
const (
	// DefaultChunkSize is the default number of items per chunk.
	DefaultChunkSize = 25

	// DefaultMaxConcurrency is the default concurrency gate capacity.
	DefaultMaxConcurrency = 5

	// DefaultRetryAttempts is the default total attempt count per item.
	DefaultRetryAttempts = 3

	// DefaultRetryDelay is the default base retry backoff.
	DefaultRetryDelay = time.Second

	// DefaultChunkPause is the fixed pause inserted between chunks.
	DefaultChunkPause = 100 * time.Millisecond
)

// Absolute ceilings. Configs beyond these fail the run before any remote
// call.
const (
	// MaxChunkSize is the largest allowed chunk size.
	MaxChunkSize = 1000

	// MaxConcurrencyCeiling is the largest allowed concurrency gate capacity.
	MaxConcurrencyCeiling = 50

	// MaxRetryAttempts is the largest allowed attempt count.
	MaxRetryAttempts = 10

	// MaxRetryDelay is the largest allowed base retry backoff.
	MaxRetryDelay = 30 * time.Second
)

// Configuration errors.
var (
	ErrInvalidChunkSize     = errors.New("chunk size must be between 1 and 1000")
	ErrInvalidConcurrency   = errors.New("max concurrency must be between 1 and 50")
	ErrInvalidRetryAttempts = errors.New("retry attempts must be between 0 and 10")
	ErrInvalidRetryDelay    = errors.New("retry delay must be between 0 and 30s")
)

// Config controls one batch run. The zero value is not usable; start from
// DefaultConfig.
type Config struct {
	// ChunkSize is the number of items per chunk.
	ChunkSize int

	// MaxConcurrency bounds simultaneous in-flight operations.
	MaxConcurrency int

	// RetryAttempts is the total attempt count per item, including the
	// first. Zero is treated as one attempt.
	RetryAttempts int

	// RetryDelay is the base backoff delay; the wait after failed attempt n
	// is RetryDelay × n.
	RetryDelay time.Duration

	// ChunkPause is the fixed pause between chunks.
	ChunkPause time.Duration

	// EnableOptimization turns on duplicate collapsing and the per-run read
	// memo.
	EnableOptimization bool

	// EnableProgress turns on progress snapshots at chunk boundaries.
	EnableProgress bool
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		ChunkSize:          DefaultChunkSize,
		MaxConcurrency:     DefaultMaxConcurrency,
		RetryAttempts:      DefaultRetryAttempts,
		RetryDelay:         DefaultRetryDelay,
		ChunkPause:         DefaultChunkPause,
		EnableOptimization: true,
		EnableProgress:     true,
	}
}

// Validate checks the config against the absolute ceilings.
func (c Config) Validate() error {
	if c.ChunkSize < 1 || c.ChunkSize > MaxChunkSize {
		return fmt.Errorf("%w: got %d", ErrInvalidChunkSize, c.ChunkSize)
	}
	if c.MaxConcurrency < 1 || c.MaxConcurrency > MaxConcurrencyCeiling {
		return fmt.Errorf("%w: got %d", ErrInvalidConcurrency, c.MaxConcurrency)
	}
	if c.RetryAttempts < 0 || c.RetryAttempts > MaxRetryAttempts {
		return fmt.Errorf("%w: got %d", ErrInvalidRetryAttempts, c.RetryAttempts)
	}
	if c.RetryDelay < 0 || c.RetryDelay > MaxRetryDelay {
		return fmt.Errorf("%w: got %s", ErrInvalidRetryDelay, c.RetryDelay)
	}
	return nil
}
