// Package gate bounds how many operations run in parallel.
//
// The gate is a counting semaphore with FIFO waiters. It is orthogonal to
// quota admission: the gate bounds simultaneous in-flight operations while
// the quota tracker bounds operations per time window; every operation passes
// through both.
package gate

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// DefaultPermits is the permit count used when a non-positive value is given.
const DefaultPermits = 5

// ErrInvalidPermits indicates a non-positive permit count.
var ErrInvalidPermits = errors.New("permit count must be at least 1")

// Gate is a fixed-capacity concurrency limiter. Waiters acquire permits in
// FIFO order.
type Gate struct {
	sem     *semaphore.Weighted
	permits int
}

// New creates a gate with the given permit count.
func New(permits int) (*Gate, error) {
	if permits < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPermits, permits)
	}

	return &Gate{
		sem:     semaphore.NewWeighted(int64(permits)),
		permits: permits,
	}, nil
}

// Permits returns the gate's capacity.
func (g *Gate) Permits() int {
	return g.permits
}

// Run executes fn once a permit is free. The permit is released on every exit
// path, including a panic inside fn. Run returns ctx's error when the wait
// for a permit is cancelled, otherwise fn's error.
func (g *Gate) Run(ctx context.Context, fn func() error) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer g.sem.Release(1)

	return fn()
}

// TryRun executes fn only if a permit is immediately available. It reports
// whether fn ran.
func (g *Gate) TryRun(fn func() error) (bool, error) {
	if !g.sem.TryAcquire(1) {
		return false, nil
	}
	defer g.sem.Release(1)

	return true, fn()
}
