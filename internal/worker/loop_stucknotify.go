package worker

import (
	"context"
	"time"
)

// stuckNotifyInterval bounds how long a suspended task with a queued
// notification can sit un-woken if the original wake transition's NOTIFY
// was lost (a crash between the UPDATE and the trigger firing).
const stuckNotifyInterval = 30 * time.Second

// stuckNotifyLoop re-drives suspended tasks that have a pending
// notification but never transitioned back to ready (spec.md §4.3.5).
// Leader-only, for the same reason as leaderLoop and cleanupLoop: a single
// worker doing the rescan avoids every worker racing to wake the same row.
func (w *Worker) stuckNotifyLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.shared.shutdown.Wait():
			return nil
		default:
		}

		if err := w.shared.Clock.Sleep(ctx, jittered(stuckNotifyInterval, w.shared.Entropy, 4)); err != nil {
			return nil
		}

		if w.shared.leader.Load() != w.id {
			continue
		}

		ids, err := w.shared.Store.StuckSuspendedWithNotifications(ctx)
		if err != nil {
			w.shared.Log.Warn().Err(err).Msg("stuck suspended scan failed, will retry")
			continue
		}

		for _, taskID := range ids {
			if err := w.shared.Store.WakeOne(ctx, taskID, w.id); err != nil {
				w.shared.Log.Warn().Err(err).Int64("task_id", taskID).Msg("failed to wake stuck task")
			}
		}
	}
}
