package worker

import (
	"context"
	"time"
)

// cleanupInterval is how often the leader sweeps terminal rows. Retention
// windows are measured in days, so there is no value in checking faster.
const cleanupInterval = time.Hour

// cleanupLoop garbage-collects terminal tasks and orphaned wasm blobs past
// their retention window (spec.md §4.3.4). Leader-only, like leaderLoop:
// every worker runs it but only acts while it believes itself leader, so
// a single GC pass doesn't race across the cluster.
func (w *Worker) cleanupLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.shared.shutdown.Wait():
			return nil
		default:
		}

		if err := w.shared.Clock.Sleep(ctx, jittered(cleanupInterval, w.shared.Entropy, 4)); err != nil {
			return nil
		}

		if w.shared.leader.Load() != w.id {
			continue
		}

		now := w.shared.Clock.Now()
		if n, err := w.shared.Store.GarbageCollectTasks(ctx, now, w.shared.Config.TaskRetention); err != nil {
			w.shared.Log.Warn().Err(err).Msg("garbage collect tasks failed, will retry")
		} else if n > 0 {
			w.shared.Log.Info().Int64("count", n).Msg("garbage collected terminal tasks")
		}

		if n, err := w.shared.Store.GarbageCollectWasm(ctx, now, w.shared.Config.WasmRetention); err != nil {
			w.shared.Log.Warn().Err(err).Msg("garbage collect wasm failed, will retry")
		} else if n > 0 {
			w.shared.Log.Info().Int64("count", n).Msg("garbage collected orphaned wasm blobs")
		}
	}
}
