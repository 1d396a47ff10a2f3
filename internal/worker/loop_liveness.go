package worker

import (
	"context"
	"time"
)

// livenessSweepLoop periodically deletes workers whose heartbeat has gone
// stale (spec.md §4.3.2). The sleep interval scales with cluster size so a
// large cluster doesn't hammer the store with sweeps:
// liveness_threshold/2 * max(live_workers, 1), capped at 24h, then
// jittered downward by up to half — exactly original_source's
// validate_workers sizing.
func (w *Worker) livenessSweepLoop(ctx context.Context) error {
	const maxInterval = 24 * time.Hour

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.shared.shutdown.Wait():
			return nil
		default:
		}

		if _, err := w.shared.Store.SweepDeadWorkers(ctx, w.shared.Config.LivenessThreshold); err != nil {
			w.shared.Log.Warn().Err(err).Msg("liveness sweep failed, will retry")
		}

		liveCount, err := w.countLiveWorkers(ctx)
		if err != nil {
			w.shared.Log.Warn().Err(err).Msg("failed to count live workers, assuming 1")
			liveCount = 1
		}
		w.shared.Metrics.RecordLiveWorkers(liveCount)

		interval := (w.shared.Config.LivenessThreshold / 2) * time.Duration(max(liveCount, 1))
		if interval > maxInterval {
			interval = maxInterval
		}
		interval = jittered(interval, w.shared.Entropy, 2)

		if err := w.shared.Clock.Sleep(ctx, interval); err != nil {
			return nil
		}
	}
}

func (w *Worker) countLiveWorkers(ctx context.Context) (int, error) {
	return w.shared.Store.CountWorkers(ctx)
}
