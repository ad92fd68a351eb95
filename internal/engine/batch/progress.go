package batch

import (
	"math"
	"sync"
	"time"
)

// percentMultiplier converts a ratio to a percentage (0-100).
const percentMultiplier = 100

// Progress tracks one batch run. Counters are monotonic and mutated only at
// chunk boundaries.
type Progress struct {
	mu sync.RWMutex

	total        int
	completed    int
	failed       int
	currentChunk int
	totalChunks  int
	startedAt    time.Time
	errs         []ItemError

	now func() time.Time
}

// newProgress creates a tracker for total items across totalChunks chunks.
func newProgress(total, totalChunks int, now func() time.Time) *Progress {
	return &Progress{
		total:       total,
		totalChunks: totalChunks,
		startedAt:   now(),
		now:         now,
	}
}

// beginChunk records that chunk index (1-based) has entered execution.
func (p *Progress) beginChunk(index int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.currentChunk = index
}

// recordChunk folds one finished chunk's outcome into the cumulative
// counters.
func (p *Progress) recordChunk(completed, failed int, errs []ItemError) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.completed += completed
	p.failed += failed
	p.errs = append(p.errs, errs...)
}

// Snapshot returns an immutable copy of the current progress state.
func (p *Progress) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	elapsed := p.now().Sub(p.startedAt)
	errs := make([]ItemError, len(p.errs))
	copy(errs, p.errs)

	return Snapshot{
		Total:        p.total,
		Completed:    p.completed,
		Failed:       p.failed,
		Percentage:   p.percentageLocked(),
		CurrentChunk: p.currentChunk,
		TotalChunks:  p.totalChunks,
		StartedAt:    p.startedAt,
		Elapsed:      elapsed,
		ETA:          p.etaLocked(elapsed),
		Errors:       errs,
	}
}

// percentageLocked computes round(100·(completed+failed)/total). Callers must
// hold the lock.
func (p *Progress) percentageLocked() int {
	if p.total == 0 {
		return 0
	}
	ratio := float64(p.completed+p.failed) / float64(p.total)
	return int(math.Round(ratio * percentMultiplier))
}

// etaLocked estimates remaining time from observed throughput. Returns zero
// until at least one item has finished. Callers must hold the lock.
func (p *Progress) etaLocked(elapsed time.Duration) time.Duration {
	done := p.completed + p.failed
	if done == 0 || elapsed <= 0 {
		return 0
	}

	remaining := p.total - done
	perItem := elapsed / time.Duration(done)
	return perItem * time.Duration(remaining)
}

// Snapshot is an immutable view of a run's progress, emitted at each chunk
// boundary.
type Snapshot struct {
	// Total is the number of items being executed (after optimization).
	Total int `json:"total"`

	// Completed is the number of items that succeeded.
	Completed int `json:"completed"`

	// Failed is the number of items that exhausted their retries.
	Failed int `json:"failed"`

	// Percentage is round(100·(completed+failed)/total).
	Percentage int `json:"percentage"`

	// CurrentChunk is the 1-based index of the chunk in flight (or just
	// finished). It reaches TotalChunks exactly once per run.
	CurrentChunk int `json:"currentChunk"`

	// TotalChunks is ceil(total/chunkSize).
	TotalChunks int `json:"totalChunks"`

	// StartedAt is when the run entered execution.
	StartedAt time.Time `json:"startedAt"`

	// Elapsed is time spent so far.
	Elapsed time.Duration `json:"elapsed"`

	// ETA estimates remaining time from observed throughput.
	ETA time.Duration `json:"eta"`

	// Errors are the item failures accumulated so far.
	Errors []ItemError `json:"errors,omitempty"`
}

// ItemsPerSecond returns the observed throughput.
func (s Snapshot) ItemsPerSecond() float64 {
	secs := s.Elapsed.Seconds()
	if secs == 0 {
		return 0
	}
	return float64(s.Completed+s.Failed) / secs
}
