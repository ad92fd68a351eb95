package quota

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Default tracker configuration.
const (
	// DefaultLimit is the default number of admissions per window.
	DefaultLimit = 1000

	// DefaultWindow is the default rolling window length.
	DefaultWindow = time.Hour

	// DefaultMinSpacing is the default minimum interval between admissions,
	// applied regardless of window consumption.
	DefaultMinSpacing = 100 * time.Millisecond

	// DefaultSoftDelayCap is the delay reached at the critical threshold on
	// the quadratic slow-down curve.
	DefaultSoftDelayCap = 5 * time.Second
)

// Consumption thresholds, as fractions of the window limit.
const (
	// softThreshold is where admissions start being delayed.
	softThreshold = 0.90

	// criticalThreshold is where admissions stop being granted synchronously
	// and callers are queued instead.
	criticalThreshold = 0.95
)

// State is a point-in-time copy of the tracker's window accounting.
type State struct {
	// Limit is the maximum number of admissions per window.
	Limit int

	// Consumed is the number of admissions granted in the current window.
	Consumed int

	// WindowResetAt is when the current window rolls over.
	WindowResetAt time.Time
}

// Feedback carries authoritative quota values reported by the server,
// typically parsed from rate-limit response headers. Server truth always
// overrides local accounting.
type Feedback struct {
	// Remaining is the number of admissions the server says are left.
	Remaining int

	// Limit is the server-reported window limit. Zero means "unchanged".
	Limit int

	// ResetAt is the server-reported window reset time. The zero value means
	// "unchanged".
	ResetAt time.Time
}

// Tracker enforces a rolling-window admission quota. It is safe for use from
// many goroutines; a single Tracker is shared by every batch run in the
// process.
type Tracker struct {
	mu       sync.Mutex
	limit    int
	consumed int
	window   time.Duration
	resetAt  time.Time

	waiters  []*waiter
	draining bool
	recheck  *time.Timer

	// spacing enforces the minimum inter-admission interval across all
	// admission paths.
	spacing      *rate.Limiter
	softDelayCap time.Duration

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	logger zerolog.Logger
}

// Option customizes a Tracker.
type Option func(*Tracker)

// WithLogger attaches a logger to the tracker.
func WithLogger(logger zerolog.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// WithClock overrides the tracker's time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithMinSpacing overrides the minimum inter-admission interval.
// A zero spacing disables pacing entirely.
func WithMinSpacing(spacing time.Duration) Option {
	return func(t *Tracker) {
		if spacing <= 0 {
			t.spacing = rate.NewLimiter(rate.Inf, 1)
			return
		}
		t.spacing = rate.NewLimiter(rate.Every(spacing), 1)
	}
}

// WithSoftDelayCap overrides the maximum delay on the soft slow-down curve.
func WithSoftDelayCap(d time.Duration) Option {
	return func(t *Tracker) { t.softDelayCap = d }
}

// NewTracker creates a tracker allowing limit admissions per window.
// Non-positive limit or window fall back to the defaults.
func NewTracker(limit int, window time.Duration, opts ...Option) *Tracker {
	if limit < 1 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}

	t := &Tracker{
		limit:        limit,
		window:       window,
		spacing:      rate.NewLimiter(rate.Every(DefaultMinSpacing), 1),
		softDelayCap: DefaultSoftDelayCap,
		now:          time.Now,
		logger:       zerolog.Nop(),
	}
	t.sleep = defaultSleep
	for _, opt := range opts {
		opt(t)
	}
	t.resetAt = t.now().Add(window)

	return t
}

// Admit blocks until one quota unit is available, then consumes it. Under
// quota pressure Admit delays (between the soft and critical thresholds) or
// queues (at or above the critical threshold); it returns an error only when
// ctx is cancelled while waiting.
func (t *Tracker) Admit(ctx context.Context) error {
	t.mu.Lock()
	t.resetIfExpiredLocked()
	ratio := float64(t.consumed) / float64(t.limit)

	switch {
	case ratio < softThreshold:
		t.consumed++
		t.mu.Unlock()

	case ratio < criticalThreshold:
		delay := t.softDelay(ratio)
		t.consumed++
		t.mu.Unlock()

		t.logger.Debug().
			Float64("ratio", ratio).
			Dur("delay", delay).
			Msg("quota soft threshold reached, delaying admission")

		if err := t.sleep(ctx, delay); err != nil {
			t.rollback()
			return err
		}

	default:
		w := t.enqueue()
		t.mu.Unlock()

		t.logger.Debug().
			Float64("ratio", ratio).
			Msg("quota critical threshold reached, queueing admission")

		select {
		case <-w.released:
		case <-ctx.Done():
			t.abandon(w)
			return ctx.Err()
		}
	}

	// Minimum spacing applies to every admission path.
	if err := t.spacing.Wait(ctx); err != nil {
		t.rollback()
		return err
	}

	return nil
}

// ApplyFeedback reconciles server-reported quota values into local state.
// If the feedback reveals new headroom, queued callers are woken immediately.
func (t *Tracker) ApplyFeedback(f Feedback) {
	t.mu.Lock()
	if f.Limit > 0 {
		t.limit = f.Limit
	}
	t.consumed = t.limit - f.Remaining
	if t.consumed < 0 {
		t.consumed = 0
	}
	if t.consumed > t.limit {
		t.consumed = t.limit
	}
	if !f.ResetAt.IsZero() {
		t.resetAt = f.ResetAt
	}
	headroom := t.consumed < t.limit
	t.mu.Unlock()

	t.logger.Debug().
		Int("remaining", f.Remaining).
		Int("limit", f.Limit).
		Time("reset_at", f.ResetAt).
		Msg("applied server quota feedback")

	if headroom {
		t.drain()
	}
}

// Snapshot returns a copy of the current window accounting, applying the lazy
// window reset first.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.resetIfExpiredLocked()
	return State{
		Limit:         t.limit,
		Consumed:      t.consumed,
		WindowResetAt: t.resetAt,
	}
}

// resetIfExpiredLocked rolls the window forward when its reset time has
// passed. Resets are lazy: there is no background timer. Callers must hold
// t.mu.
func (t *Tracker) resetIfExpiredLocked() {
	now := t.now()
	if now.Before(t.resetAt) {
		return
	}

	t.consumed = 0
	for !now.Before(t.resetAt) {
		t.resetAt = t.resetAt.Add(t.window)
	}
}

// softDelay maps a consumption ratio in [softThreshold, criticalThreshold)
// onto a convex delay curve: zero at the soft threshold, softDelayCap at the
// critical threshold.
func (t *Tracker) softDelay(ratio float64) time.Duration {
	frac := (ratio - softThreshold) / (criticalThreshold - softThreshold)
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	return time.Duration(float64(t.softDelayCap) * frac * frac)
}

// rollback returns a consumed-but-unused quota unit after a cancelled wait.
func (t *Tracker) rollback() {
	t.mu.Lock()
	if t.consumed > 0 {
		t.consumed--
	}
	t.mu.Unlock()
}

// defaultSleep waits for d or until ctx is cancelled.
func defaultSleep(ctx context.Context, d time.Duration) error {
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
