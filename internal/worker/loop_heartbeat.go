package worker

import (
	"context"
	"errors"
	"time"

	"github.com/kosarica/durable/internal/durableerr"
	"github.com/kosarica/durable/internal/randsrc"
)

// heartbeatLoop keeps this worker's row alive (spec.md §4.3.1). Sleeps
// heartbeat_interval jittered downward by up to a quarter, mirroring
// original_source's heartbeat task. A missing row (this worker was judged
// dead by a peer's liveness sweep) is fatal: shutdown is raised so every
// other loop tears down together, exactly as heartbeat's early return does
// in the Rust source via the shared ShutdownFlag.
func (w *Worker) heartbeatLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.shared.shutdown.Wait():
			return nil
		default:
		}

		interval := jittered(w.shared.Config.HeartbeatInterval, w.shared.Entropy, 4)
		if err := w.shared.Clock.Sleep(ctx, interval); err != nil {
			return nil
		}

		err := w.shared.Store.Heartbeat(ctx, w.id)
		if err != nil {
			if errors.Is(err, durableerr.ErrNotFound) {
				w.shared.Log.Error().Msg("worker entry was deleted from the database; initiating shutdown")
				return w.fatal(durableerr.ErrHeartbeatLost)
			}
			if errors.Is(err, durableerr.ErrStoreUnavailable) {
				w.shared.Log.Warn().Err(err).Msg("heartbeat: store unavailable, will retry")
				continue
			}
			return w.fatal(err)
		}
	}
}

// jittered returns interval reduced by a random fraction in [0, 1/denom),
// matching original_source's `interval -= rand(0..interval/denom)`.
func jittered(interval time.Duration, entropy randsrc.Source, denom int) time.Duration {
	maxJitter := interval / time.Duration(denom)
	jitter := time.Duration(entropy.Float64() * float64(maxJitter))
	return interval - jitter
}
