package worker

import (
	"context"
	"fmt"

	"github.com/kosarica/durable/internal/eventsource"
	"golang.org/x/sync/errgroup"
)

// Worker runs one process's worker loop: registers itself, then runs the
// six loops of spec.md §4.3 concurrently under one errgroup (the Go analogue
// of original_source's (heartbeat, validate, leader, process).join()), and
// on the way out deletes its own worker row.
type Worker struct {
	shared    *SharedState
	executors *executorSet

	id      int64
	spawner *Spawner
	source  *eventsource.Source
}

// Run registers this worker, launches every loop, and blocks until ctx is
// cancelled or a fatal error (ErrHeartbeatLost, or a heartbeat failure
// other than ErrStoreUnavailable; the other control loops log their errors
// and retry) raises the shared shutdown flag. It always attempts to
// delete its own worker row before returning, matching spec.md §4.3's
// shutdown contract.
func (w *Worker) Run(ctx context.Context) error {
	id, err := w.shared.Store.RegisterWorker(ctx)
	if err != nil {
		return fmt.Errorf("worker: register: %w", err)
	}
	w.id = id
	w.shared.leader.Store(id)
	w.shared.Log = w.shared.Log.With().Int64("worker_id", id).Logger()
	w.shared.Log.Info().Msg("durable worker started")

	taskCtx, cancelTasks := context.WithCancel(context.Background())
	w.shared.taskCtx = taskCtx
	defer cancelTasks()

	w.executors = newExecutorSet()
	w.spawner = NewSpawner(w.shared, w.id, w.executors)
	w.source = eventsource.New(connStringFromStore(w.shared), w.shared.Log)

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return w.heartbeatLoop(gctx) })
	group.Go(func() error { return w.livenessSweepLoop(gctx) })
	group.Go(func() error { return w.leaderLoop(gctx) })
	group.Go(func() error { return w.cleanupLoop(gctx) })
	group.Go(func() error { return w.stuckNotifyLoop(gctx) })
	group.Go(func() error { return w.dispatchLoop(gctx) })
	group.Go(func() error { return w.source.Run(gctx) })

	runErr := group.Wait()

	w.shared.Log.Info().Msg("shutting down: waiting for in-flight executors")
	waitCtx, cancelWait := context.WithTimeout(context.Background(), w.shared.Config.SuspendTimeout)
	defer cancelWait()
	if err := w.executors.Wait(waitCtx); err != nil {
		w.shared.Log.Warn().Err(err).Msg("suspend_timeout elapsed; forcing executor cancellation")
		cancelTasks()
		_ = w.executors.Wait(context.Background())
	}

	w.shared.Log.Info().Msg("deleting worker database entry")
	if err := w.shared.Store.DeleteWorker(context.Background(), w.id); err != nil {
		w.shared.Log.Error().Err(err).Msg("failed to delete worker row")
		if runErr == nil {
			runErr = err
		}
	}

	if runErr != nil && !isShutdownInitiated(runErr) {
		return runErr
	}
	return nil
}

// isShutdownInitiated reports whether err is just context cancellation
// caused by this worker's own graceful shutdown rather than a real failure.
func isShutdownInitiated(err error) bool {
	return err == context.Canceled
}

// connStringFromStore exposes the pool's connection string for
// eventsource.Source, which needs its own dedicated (non-pooled)
// connection to hold a LISTEN session open.
func connStringFromStore(shared *SharedState) string {
	return shared.Store.Pool().Config().ConnConfig.ConnString()
}

// fatal raises the shared shutdown flag and wraps err for the caller's
// errgroup, matching every original_source loop's "return Err(..) which
// propagates to worker.run() and tears the whole worker down" behavior.
func (w *Worker) fatal(err error) error {
	w.shared.shutdown.Raise()
	return err
}
