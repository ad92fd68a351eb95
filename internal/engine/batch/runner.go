package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/rshade/bulkhead/internal/engine/dedupe"
	"github.com/rshade/bulkhead/internal/engine/gate"
	"github.com/rshade/bulkhead/internal/engine/quota"
	"github.com/rshade/bulkhead/internal/engine/retry"
	"github.com/rshade/bulkhead/internal/engine/work"
)

// Run errors.
var (
	ErrEmptyItems       = errors.New("work list cannot be empty")
	ErrInvalidKind      = errors.New("unsupported operation kind")
	ErrMissingOperation = errors.New("no operation registered for kind")
	ErrRunCancelled     = errors.New("batch run cancelled")
)

// RunState is the orchestrator's position in its lifecycle.
type RunState int32

// Run lifecycle states. Cancelled is reachable from any state.
const (
	StateIdle RunState = iota
	StateOptimizing
	StateChunking
	StateExecuting
	StateAggregating
	StateDone
	StateCancelled
)

// String returns the state name for logging.
func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOptimizing:
		return "optimizing"
	case StateChunking:
		return "chunking"
	case StateExecuting:
		return "executing"
	case StateAggregating:
		return "aggregating"
	case StateDone:
		return "done"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ProgressSink receives a progress snapshot at each chunk boundary.
type ProgressSink func(Snapshot)

// Runner executes batch runs. One Runner serves one run at a time; the quota
// tracker it holds may be shared process-wide across runners.
type Runner struct {
	cfg     Config
	tracker *quota.Tracker
	gate    *gate.Gate
	policy  retry.Policy
	sink    ProgressSink
	logger  zerolog.Logger
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
	state   atomic.Int32
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithLogger attaches a logger to the runner.
func WithLogger(logger zerolog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

// WithProgressSink registers the chunk-boundary progress receiver. It is
// only invoked when Config.EnableProgress is set.
func WithProgressSink(sink ProgressSink) RunnerOption {
	return func(r *Runner) { r.sink = sink }
}

// WithClock overrides the runner's time source. Intended for tests.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// NewRunner validates cfg against the absolute ceilings and builds a runner
// around the given quota tracker. A nil tracker gets a process-default one.
// Validation failures are synchronous: no remote call is ever made for an
// invalid config.
func NewRunner(cfg Config, tracker *quota.Tracker, opts ...RunnerOption) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g, err := gate.New(cfg.MaxConcurrency)
	if err != nil {
		return nil, err
	}

	if tracker == nil {
		tracker = quota.NewTracker(quota.DefaultLimit, quota.DefaultWindow)
	}

	r := &Runner{
		cfg:     cfg,
		tracker: tracker,
		gate:    g,
		policy:  retry.NewPolicy(cfg.RetryAttempts, cfg.RetryDelay),
		logger:  zerolog.Nop(),
		now:     time.Now,
		sleep:   sleepCtx,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// State returns the runner's current lifecycle state.
func (r *Runner) State() RunState {
	return RunState(r.state.Load())
}

func (r *Runner) setState(s RunState) {
	r.state.Store(int32(s))
	r.logger.Debug().Str("state", s.String()).Msg("run state changed")
}

// Run executes the work list and returns the terminal Result. Per-item
// failures are aggregated into the result, never returned as Run errors; the
// error return is reserved for invalid input and cancellation. On
// cancellation Run returns the partial result aggregated so far alongside an
// error wrapping ErrRunCancelled.
func (r *Runner) Run(ctx context.Context, items []work.Item, ops work.OperationSet) (*Result, error) {
	if len(items) == 0 {
		return nil, ErrEmptyItems
	}
	for _, item := range items {
		if !item.Kind.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidKind, item.Kind)
		}
		if ops[item.Kind] == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingOperation, item.Kind)
		}
	}

	// Cancellation before the first chunk: fail with zero remote calls.
	if ctx.Err() != nil {
		r.setState(StateCancelled)
		return nil, r.cancelErr(ctx)
	}

	runID := ulid.Make().String()
	logger := r.logger.With().Str("run_id", runID).Logger()
	start := r.now()

	r.setState(StateOptimizing)
	var stats dedupe.Stats
	var memo *dedupe.Memo
	execItems := items
	if r.cfg.EnableOptimization {
		var removed int
		execItems, removed = dedupe.Collapse(items)
		stats.DuplicatesRemoved = removed
		memo = dedupe.NewMemo()
		logger.Debug().
			Int("submitted", len(items)).
			Int("unique", len(execItems)).
			Msg("work list optimized")
	}

	r.setState(StateChunking)
	chunks := chunkItems(execItems, r.cfg.ChunkSize)
	progress := newProgress(len(execItems), len(chunks), r.now)
	result := &Result{RunID: runID}

	r.setState(StateExecuting)
	for i, chunk := range chunks {
		// Chunk-entry cancellation check.
		if ctx.Err() != nil {
			return r.finishCancelled(ctx, result, progress, &stats, memo, start, logger)
		}

		progress.beginChunk(i + 1)
		logger.Debug().
			Int("chunk", i+1).
			Int("total_chunks", len(chunks)).
			Int("items", len(chunk)).
			Msg("executing chunk")

		outcomes := r.runChunk(ctx, chunk, ops, memo)

		var completed, failed int
		var errs []ItemError
		cancelledSeen := false
		for _, out := range outcomes {
			switch {
			case out.cancelled:
				cancelledSeen = true
			case out.itemErr != nil:
				failed++
				errs = append(errs, *out.itemErr)
				result.Errors = append(result.Errors, *out.itemErr)
			default:
				completed++
				result.Successes = append(result.Successes, ItemSuccess{
					Item:      out.item,
					Value:     out.value,
					FromCache: out.fromCache,
				})
			}
		}
		progress.recordChunk(completed, failed, errs)

		if r.cfg.EnableProgress && r.sink != nil {
			r.sink(progress.Snapshot())
		}

		if cancelledSeen || ctx.Err() != nil {
			return r.finishCancelled(ctx, result, progress, &stats, memo, start, logger)
		}

		if i < len(chunks)-1 && r.cfg.ChunkPause > 0 {
			if err := r.sleep(ctx, r.cfg.ChunkPause); err != nil {
				return r.finishCancelled(ctx, result, progress, &stats, memo, start, logger)
			}
		}
	}

	r.setState(StateAggregating)
	finalizeStats(&stats, memo)
	result.Progress = progress.Snapshot()
	result.Optimizations = stats
	result.Duration = r.now().Sub(start)

	r.setState(StateDone)
	logger.Info().
		Int("completed", result.Progress.Completed).
		Int("failed", result.Progress.Failed).
		Int("duplicates_removed", stats.DuplicatesRemoved).
		Int("cache_hits", stats.CacheHits).
		Dur("duration", result.Duration).
		Msg("batch run finished")

	return result, nil
}

// outcome is the per-item execution record collected within a chunk.
type outcome struct {
	item      work.Item
	value     any
	fromCache bool
	itemErr   *ItemError
	cancelled bool
}

// runChunk fans the chunk's items out through the concurrency gate and waits
// for all of them. Completion order within the chunk is nondeterministic;
// outcomes are attributed by slot.
func (r *Runner) runChunk(
	ctx context.Context,
	chunk []work.Item,
	ops work.OperationSet,
	memo *dedupe.Memo,
) []outcome {
	outcomes := make([]outcome, len(chunk))
	var wg sync.WaitGroup

	for i, item := range chunk {
		wg.Add(1)
		go func(slot int, item work.Item) {
			defer wg.Done()
			outcomes[slot] = r.runItem(ctx, item, ops, memo)
		}(i, item)
	}

	wg.Wait()
	return outcomes
}

// runItem executes one item: gate permit, quota admission, then the retried
// operation. Item failures are recorded, not propagated; only cancellation
// surfaces as a cancelled outcome.
func (r *Runner) runItem(
	ctx context.Context,
	item work.Item,
	ops work.OperationSet,
	memo *dedupe.Memo,
) outcome {
	// Per-item admission cancellation check: once cancellation is observed,
	// no new operation starts.
	if ctx.Err() != nil {
		return outcome{item: item, cancelled: true}
	}

	out := outcome{item: item}
	gateErr := r.gate.Run(ctx, func() error {
		if memo != nil && item.Kind.Cacheable() {
			if value, ok := memo.Get(item.CacheKey()); ok {
				out.value = value
				out.fromCache = true
				return nil
			}
		}

		if err := r.tracker.Admit(ctx); err != nil {
			return err
		}

		res := r.policy.Do(ctx, func(ctx context.Context) error {
			value, err := ops[item.Kind](ctx, item)
			if err == nil {
				out.value = value
			}
			return err
		})
		if res.Err != nil {
			if errors.Is(res.Err, context.Canceled) || errors.Is(res.Err, context.DeadlineExceeded) {
				return res.Err
			}
			out.itemErr = &ItemError{
				ItemKey:   item.Key,
				Message:   res.Err.Error(),
				Attempts:  res.Attempt,
				Timestamp: r.now(),
			}
			return nil
		}

		if memo != nil && item.Kind.Cacheable() {
			memo.Put(item.CacheKey(), out.value)
		}
		return nil
	})
	if gateErr != nil {
		out.cancelled = true
	}

	return out
}

// finishCancelled assembles the partial result at the point cancellation was
// observed and returns it with the distinct cancellation error.
func (r *Runner) finishCancelled(
	ctx context.Context,
	result *Result,
	progress *Progress,
	stats *dedupe.Stats,
	memo *dedupe.Memo,
	start time.Time,
	logger zerolog.Logger,
) (*Result, error) {
	r.setState(StateCancelled)
	finalizeStats(stats, memo)
	result.Progress = progress.Snapshot()
	result.Optimizations = *stats
	result.Duration = r.now().Sub(start)

	err := r.cancelErr(ctx)
	logger.Warn().
		Int("completed", result.Progress.Completed).
		Int("failed", result.Progress.Failed).
		Msg("batch run cancelled")

	return result, err
}

// cancelErr wraps ErrRunCancelled with the cancellation cause when one was
// supplied via context.WithCancelCause.
func (r *Runner) cancelErr(ctx context.Context) error {
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return fmt.Errorf("%w: %s", ErrRunCancelled, cause)
	}
	return ErrRunCancelled
}

// finalizeStats folds the memo's hit count into the stats and releases the
// memo. The memo never outlives its run.
func finalizeStats(stats *dedupe.Stats, memo *dedupe.Memo) {
	if memo != nil {
		stats.CacheHits = memo.Hits()
		memo.Clear()
	}
	stats.Finalize()
}

// chunkItems partitions items into order-preserving chunks of size. The last
// chunk may be short.
func chunkItems(items []work.Item, size int) [][]work.Item {
	if size < 1 {
		size = 1
	}

	total := len(items) / size
	if len(items)%size > 0 {
		total++
	}

	chunks := make([][]work.Item, 0, total)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}

	return chunks
}

// sleepCtx waits for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
