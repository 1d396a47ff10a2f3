// Package clocksrc provides the runtime's injectable view of time.
//
// WASM-visible clock reads go through the transaction log (internal/host);
// this package covers the runtime's own internal time reads so that a
// deterministic-simulation implementation can substitute a controlled
// clock. Not every time read in the core goes through it: the clock plugin
// in internal/host and store.SweepDeadWorkers/FindLeader call time.Now()
// directly, and the leader loop and the event source's reconnect backoff
// wait on time.After.
package clocksrc

import (
	"context"
	"time"
)

// Clock is the seam injected into worker.Worker and its loops.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Sleep blocks for d or until ctx is done, whichever comes first.
	// Returns ctx.Err() on cancellation, nil if the sleep elapsed normally.
	Sleep(ctx context.Context, d time.Duration) error
}

// System is the production Clock, a thin wrapper over the time package.
type System struct{}

// Now implements Clock.
func (System) Now() time.Time { return time.Now() }

// Sleep implements Clock.
func (System) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
