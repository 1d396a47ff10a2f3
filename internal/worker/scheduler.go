package worker

import "context"

// Scheduler gates when a claimed task's executor goroutine actually begins
// stepping the guest. It is one of the four determinism-testing seams
// named in spec.md §9 / original_source's dst.rs: production wiring never
// throttles, but a deterministic-simulation test harness can substitute a
// Scheduler that serializes executor start order to make otherwise-racy
// interleavings (steal-on-crash, contention) reproducible.
type Scheduler interface {
	// Acquire blocks until the caller may start running one executor, or
	// returns ctx.Err() if ctx is done first.
	Acquire(ctx context.Context) error
}

// unthrottledScheduler is the production Scheduler: every executor starts
// as soon as the spawner launches its goroutine.
type unthrottledScheduler struct{}

func (unthrottledScheduler) Acquire(ctx context.Context) error {
	return ctx.Err()
}
