package quota

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_AdmitBelowSoftThreshold(t *testing.T) {
	tr := NewTracker(10, time.Hour, WithMinSpacing(0))

	for range 5 {
		require.NoError(t, tr.Admit(context.Background()))
	}

	state := tr.Snapshot()
	assert.Equal(t, 5, state.Consumed)
	assert.Equal(t, 10, state.Limit)
}

func TestTracker_SoftDelayCurve(t *testing.T) {
	tr := NewTracker(1000, time.Hour)

	tests := []struct {
		name  string
		ratio float64
		want  time.Duration
	}{
		{"at soft threshold", 0.90, 0},
		{"midway", 0.925, time.Duration(float64(DefaultSoftDelayCap) * 0.25)},
		{"near critical", 0.94, time.Duration(float64(DefaultSoftDelayCap) * 0.64)},
		{"clamped below", 0.50, 0},
		{"clamped above", 0.99, DefaultSoftDelayCap},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, float64(tt.want), float64(tr.softDelay(tt.ratio)), float64(time.Millisecond))
		})
	}
}

func TestTracker_AdmitAtBoundary(t *testing.T) {
	// 949/1000 consumed: the next admission sits just below the critical
	// threshold, so it is synchronous but delayed.
	tr := NewTracker(1000, time.Hour, WithMinSpacing(0))
	tr.consumed = 949

	var slept []time.Duration
	tr.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	require.NoError(t, tr.Admit(context.Background()))

	require.Len(t, slept, 1)
	// ratio 0.949 → frac 0.98 → 5s × 0.9604.
	assert.InDelta(t, 4.802, slept[0].Seconds(), 0.01)
	assert.Equal(t, 950, tr.Snapshot().Consumed)
}

func TestTracker_AdmitQueuesAtCriticalThreshold(t *testing.T) {
	tr := NewTracker(100, time.Hour, WithMinSpacing(0))
	tr.consumed = 95

	admitted := make(chan string, 2)
	admit := func(name string) {
		if err := tr.Admit(context.Background()); err == nil {
			admitted <- name
		}
	}

	go admit("first")
	waitForQueueLen(t, tr, 1)
	go admit("second")
	waitForQueueLen(t, tr, 2)

	select {
	case name := <-admitted:
		t.Fatalf("expected both callers queued, %s was admitted", name)
	case <-time.After(50 * time.Millisecond):
	}

	// Headroom for exactly one release: 94/100 is below critical, 95/100 is
	// not. FIFO: the first waiter gets it.
	tr.ApplyFeedback(Feedback{Remaining: 6, Limit: 100})

	select {
	case name := <-admitted:
		assert.Equal(t, "first", name)
	case <-time.After(time.Second):
		t.Fatal("expected the first waiter to be released")
	}

	select {
	case name := <-admitted:
		t.Fatalf("expected the second waiter to stay queued, got %s", name)
	case <-time.After(50 * time.Millisecond):
	}

	// Plenty of headroom releases the rest.
	tr.ApplyFeedback(Feedback{Remaining: 50, Limit: 100})

	select {
	case name := <-admitted:
		assert.Equal(t, "second", name)
	case <-time.After(time.Second):
		t.Fatal("expected the second waiter to be released")
	}
}

func TestTracker_QueuedCallerCancellation(t *testing.T) {
	tr := NewTracker(100, time.Hour, WithMinSpacing(0))
	tr.consumed = 99

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- tr.Admit(ctx) }()
	waitForQueueLen(t, tr, 1)

	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("expected cancelled waiter to return")
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()
	assert.Empty(t, tr.waiters)
}

func TestTracker_LazyWindowReset(t *testing.T) {
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	current := base
	tr := NewTracker(10, time.Minute, WithClock(func() time.Time { return current }), WithMinSpacing(0))
	tr.consumed = 10

	// Still inside the window: nothing resets.
	assert.Equal(t, 10, tr.Snapshot().Consumed)

	// Past the reset: consumption zeroes and the reset advances one window.
	current = base.Add(61 * time.Second)
	state := tr.Snapshot()
	assert.Zero(t, state.Consumed)
	assert.Equal(t, base.Add(2*time.Minute), state.WindowResetAt)

	// A long idle period advances the reset past "now" in window steps.
	current = base.Add(10*time.Minute + 30*time.Second)
	state = tr.Snapshot()
	assert.Zero(t, state.Consumed)
	assert.True(t, state.WindowResetAt.After(current))
}

func TestTracker_ApplyFeedbackOverwritesLocalState(t *testing.T) {
	tr := NewTracker(100, time.Hour, WithMinSpacing(0))
	tr.consumed = 10

	resetAt := time.Now().Add(30 * time.Minute)
	tr.ApplyFeedback(Feedback{Remaining: 25, Limit: 200, ResetAt: resetAt})

	state := tr.Snapshot()
	assert.Equal(t, 200, state.Limit)
	assert.Equal(t, 175, state.Consumed)
	assert.Equal(t, resetAt, state.WindowResetAt)
}

func TestTracker_ApplyFeedbackClamps(t *testing.T) {
	tr := NewTracker(100, time.Hour, WithMinSpacing(0))

	tr.ApplyFeedback(Feedback{Remaining: 500, Limit: 100})
	assert.Zero(t, tr.Snapshot().Consumed)

	tr.ApplyFeedback(Feedback{Remaining: -3, Limit: 100})
	assert.Equal(t, 100, tr.Snapshot().Consumed)
}

func TestTracker_MinSpacing(t *testing.T) {
	tr := NewTracker(1000, time.Hour, WithMinSpacing(20*time.Millisecond))

	start := time.Now()
	require.NoError(t, tr.Admit(context.Background()))
	require.NoError(t, tr.Admit(context.Background()))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 15*time.Millisecond)
}

// waitForQueueLen blocks until the tracker's admission queue reaches n.
func waitForQueueLen(t *testing.T, tr *Tracker, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		tr.mu.Lock()
		queued := len(tr.waiters)
		tr.mu.Unlock()
		if queued >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("admission queue never reached %d waiters", n)
}
