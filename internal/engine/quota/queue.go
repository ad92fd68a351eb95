package quota

import "time"

// maxRecheckInterval caps how long the queue waits before re-evaluating
// eligibility when no server feedback arrives.
const maxRecheckInterval = 60 * time.Second

// waiter is one caller parked in the admission queue.
type waiter struct {
	// released is closed when the waiter is granted admission. The quota
	// unit has already been consumed on its behalf by then.
	released chan struct{}
}

// enqueue appends a new waiter to the queue tail and arms the recheck timer.
// Callers must hold t.mu.
func (t *Tracker) enqueue() *waiter {
	w := &waiter{released: make(chan struct{})}
	t.waiters = append(t.waiters, w)
	t.scheduleRecheckLocked()
	return w
}

// abandon removes a waiter whose caller gave up (context cancellation). If
// the waiter was already released, the quota unit consumed on its behalf is
// returned.
func (t *Tracker) abandon(w *waiter) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, queued := range t.waiters {
		if queued == w {
			t.waiters = append(t.waiters[:i], t.waiters[i+1:]...)
			return
		}
	}

	// Not in the queue: drain released it between the caller's cancellation
	// and this cleanup. Give the unit back.
	if t.consumed > 0 {
		t.consumed--
	}
}

// drain releases queued waiters in strict FIFO order while the window stays
// below the critical threshold, consuming one quota unit per release. When
// waiters remain but no headroom exists, a recheck is scheduled for the
// earlier of the window reset and maxRecheckInterval. Only one drain runs at
// a time.
func (t *Tracker) drain() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.draining {
		return
	}
	t.draining = true
	defer func() { t.draining = false }()

	released := 0
	for len(t.waiters) > 0 {
		t.resetIfExpiredLocked()

		ratio := float64(t.consumed) / float64(t.limit)
		if t.consumed >= t.limit || ratio >= criticalThreshold {
			t.scheduleRecheckLocked()
			break
		}

		w := t.waiters[0]
		t.waiters = t.waiters[1:]
		t.consumed++
		close(w.released)
		released++
	}

	if released > 0 {
		t.logger.Debug().
			Int("released", released).
			Int("still_queued", len(t.waiters)).
			Msg("admission queue drained")
	}
}

// scheduleRecheckLocked arms (or re-arms) the drain recheck timer. Callers
// must hold t.mu.
func (t *Tracker) scheduleRecheckLocked() {
	if len(t.waiters) == 0 {
		return
	}

	delay := t.resetAt.Sub(t.now())
	if delay > maxRecheckInterval {
		delay = maxRecheckInterval
	}
	if delay < time.Millisecond {
		delay = time.Millisecond
	}

	if t.recheck != nil {
		t.recheck.Stop()
	}
	t.recheck = time.AfterFunc(delay, t.drain)
}
