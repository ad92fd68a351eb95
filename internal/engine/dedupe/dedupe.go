// Package dedupe collapses duplicate work items before execution and
// memoizes read results within a single batch run.
package dedupe

import (
	"github.com/rshade/bulkhead/internal/engine/work"
)

// Stats records the optimizations applied to one batch run.
type Stats struct {
	// DuplicatesRemoved is how many items were collapsed before execution.
	DuplicatesRemoved int `json:"duplicatesRemoved"`

	// CacheHits is how many read operations were served from the per-run
	// memo instead of a remote call.
	CacheHits int `json:"cacheHits"`

	// RequestsOptimized is the number of remote calls avoided before
	// execution started (equal to DuplicatesRemoved).
	RequestsOptimized int `json:"requestsOptimized"`

	// TotalSavings is the total number of remote calls avoided by all
	// optimizations combined.
	TotalSavings int `json:"totalSavings"`
}

// Finalize fills the derived counters from the base ones.
func (s *Stats) Finalize() {
	s.RequestsOptimized = s.DuplicatesRemoved
	s.TotalSavings = s.DuplicatesRemoved + s.CacheHits
}

// Collapse returns the unique items of the list, preserving first-occurrence
// order, along with the number of duplicates removed. Duplicates are detected
// by structural-equality signature, not identity. Collapse is idempotent:
// running it on an already-unique list removes nothing.
func Collapse(items []work.Item) ([]work.Item, int) {
	if len(items) == 0 {
		return nil, 0
	}

	seen := make(map[string]struct{}, len(items))
	unique := make([]work.Item, 0, len(items))
	for _, item := range items {
		sig := item.Signature()
		if _, dup := seen[sig]; dup {
			continue
		}
		seen[sig] = struct{}{}
		unique = append(unique, item)
	}

	return unique, len(items) - len(unique)
}
