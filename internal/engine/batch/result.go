package batch

import (
	"time"

	"github.com/rshade/bulkhead/internal/engine/dedupe"
	"github.com/rshade/bulkhead/internal/engine/work"
)

// ItemError records one item that exhausted its retries. It is immutable
// once recorded.
type ItemError struct {
	// ItemKey is the remote key of the failed item.
	ItemKey string `json:"itemId"`

	// Message is the final attempt's error text.
	Message string `json:"message"`

	// Attempts is the number of attempts made before giving up.
	Attempts int `json:"attemptNumber"`

	// Timestamp is when the failure was recorded.
	Timestamp time.Time `json:"timestamp"`
}

// ItemSuccess records one item that completed, with its result value.
type ItemSuccess struct {
	// Item is the work item as submitted.
	Item work.Item `json:"item"`

	// Value is whatever the operation returned.
	Value any `json:"value,omitempty"`

	// FromCache is true when the value was served from the per-run read
	// memo instead of a remote call.
	FromCache bool `json:"fromCache,omitempty"`
}

// Result is the terminal outcome of one batch run. A run that finishes with
// both successes and errors is still a completed run; callers must inspect
// Errors.
type Result struct {
	// RunID is the ULID assigned to this run.
	RunID string `json:"runId"`

	// Successes holds completed items in completion-recording order.
	Successes []ItemSuccess `json:"successes"`

	// Errors holds items that exhausted their retries.
	Errors []ItemError `json:"errors"`

	// Progress is the final progress snapshot.
	Progress Snapshot `json:"finalProgress"`

	// Optimizations reports the dedup/cache work applied to this run.
	Optimizations dedupe.Stats `json:"optimizations"`

	// Duration is wall time from Optimizing through Done (or cancellation).
	Duration time.Duration `json:"duration"`
}
