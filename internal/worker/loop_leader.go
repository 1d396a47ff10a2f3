package worker

import (
	"context"
	"errors"
	"time"

	"github.com/kosarica/durable/internal/durableerr"
)

// defaultLeaderPoll bounds how long the leader loop sleeps when no
// suspended task has a wakeup_at set, so a task suspended with a deadline
// set by a notification race is still picked up reasonably soon.
const defaultLeaderPoll = 30 * time.Second

// leaderLoop wakes due suspended tasks (spec.md §4.3.3). Only the worker
// currently believed to be the cluster leader (smallest live worker id,
// per Store.FindLeader) does any work on a given tick; every worker still
// runs the loop so leadership can fail over without a gap, mirroring
// original_source's leader() task.
func (w *Worker) leaderLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.shared.shutdown.Wait():
			return nil
		default:
		}

		if w.shared.leader.Load() == w.id {
			if _, err := w.shared.Store.WakeDueTasks(ctx, w.shared.Clock.Now(), w.shared.Config.LivenessThreshold); err != nil {
				w.shared.Log.Warn().Err(err).Msg("wake due tasks failed, will retry")
			}
		}

		sleep := w.nextLeaderSleep(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-w.shared.shutdown.Wait():
			return nil
		case <-w.shared.leader.Changed():
		case <-w.shared.suspend:
		case <-time.After(sleep):
		}
	}
}

// nextLeaderSleep sizes the wait until the earliest pending wakeup_at,
// falling back to defaultLeaderPoll when nothing is suspended with a
// deadline or this worker isn't leader (no point polling tightly).
func (w *Worker) nextLeaderSleep(ctx context.Context) time.Duration {
	if w.shared.leader.Load() != w.id {
		return defaultLeaderPoll
	}

	earliest, ok, err := w.shared.Store.EarliestWakeup(ctx)
	if err != nil {
		w.shared.Log.Warn().Err(err).Msg("earliest wakeup query failed")
		return defaultLeaderPoll
	}
	if !ok {
		return defaultLeaderPoll
	}

	d := earliest.Sub(w.shared.Clock.Now())
	if d < 0 {
		return 0
	}
	if d > defaultLeaderPoll {
		return defaultLeaderPoll
	}
	return d
}

// refreshLeader re-derives the cluster leader from the store and updates
// the shared mailbox, called whenever a durable:worker notification or a
// Lagged sentinel suggests membership may have changed.
func (w *Worker) refreshLeader(ctx context.Context) {
	id, err := w.shared.Store.FindLeader(ctx, w.shared.Config.LivenessThreshold)
	if err != nil {
		if !errors.Is(err, durableerr.ErrNotFound) {
			w.shared.Log.Warn().Err(err).Msg("find leader failed")
		}
		return
	}
	w.shared.leader.Store(id)
}
