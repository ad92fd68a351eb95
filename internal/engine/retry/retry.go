// Package retry wraps operations with bounded retries and linear backoff.
//
// Every error is treated as retryable; the engine does not classify
// permanent failures. Callers that need permanent-failure short-circuiting
// must enforce it inside the wrapped operation.
package retry

import (
	"context"
	"time"
)

// Default policy values.
const (
	// DefaultAttempts is the default total attempt count per operation.
	DefaultAttempts = 3

	// DefaultDelay is the default base backoff delay. The wait before
	// attempt n+1 is DefaultDelay × n.
	DefaultDelay = time.Second
)

// Policy describes how an operation is retried.
type Policy struct {
	// Attempts is the total number of attempts, including the first. Values
	// below 1 are treated as 1: an operation always runs at least once.
	Attempts int

	// Delay is the base backoff delay. The wait after a failed attempt n is
	// Delay × n (linear backoff).
	Delay time.Duration

	// sleep is overridable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPolicy creates a retry policy with the given attempt count and base
// delay.
func NewPolicy(attempts int, delay time.Duration) Policy {
	return Policy{Attempts: attempts, Delay: delay}
}

// Result records the outcome of a retried operation.
type Result struct {
	// Attempt is the 1-based attempt number that produced the outcome: the
	// succeeding attempt, or the final attempt on exhaustion.
	Attempt int

	// Err is nil on success, the last attempt's error on exhaustion, or the
	// context's error when the backoff wait was cancelled.
	Err error
}

// Do runs op until it succeeds or attempts are exhausted, waiting
// Delay × attempt between failures. Cancellation of ctx during a backoff
// wait stops retrying immediately; an attempt already underway is not
// interrupted beyond what op itself does with ctx.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) Result {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	sleep := p.sleep
	if sleep == nil {
		sleep = defaultSleep
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return Result{Attempt: attempt}
		}

		if attempt == attempts {
			break
		}

		if err := sleep(ctx, p.Delay*time.Duration(attempt)); err != nil {
			return Result{Attempt: attempt, Err: err}
		}
	}

	return Result{Attempt: attempts, Err: lastErr}
}

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
