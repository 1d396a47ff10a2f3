package worker

import (
	"context"

	"github.com/kosarica/durable/internal/eventsource"
)

// dispatchLoop drives the Task Spawner off the event source (spec.md
// §4.3.6 / §4.4): an initial poll catches anything ready at startup, then
// every subsequent poll is driven by durable:task notifications (or a
// Lagged sentinel forcing a conservative rescan) rather than a timer,
// mirroring original_source's process_events.
func (w *Worker) dispatchLoop(ctx context.Context) error {
	if err := w.spawner.Poll(ctx); err != nil {
		w.shared.Log.Warn().Err(err).Msg("initial spawner poll failed")
	}
	w.refreshLeader(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.shared.shutdown.Wait():
			return nil
		case evt, ok := <-w.source.Events():
			if !ok {
				return nil
			}
			w.handleEvent(ctx, evt)
		}
	}
}

func (w *Worker) handleEvent(ctx context.Context, evt eventsource.Event) {
	switch evt.Kind {
	case eventsource.KindTaskReady:
		// A task transitioned to ready unowned, or was hinted at a
		// specific worker by a wake transition. Unowned tasks and tasks
		// hinted at this worker always trigger a poll; a task hinted at
		// another worker triggers one only if this worker is not known to
		// be full.
		if evt.RunningOn == nil || *evt.RunningOn == w.id || !w.spawner.Blocked() {
			if err := w.spawner.Poll(ctx); err != nil {
				w.shared.Log.Warn().Err(err).Msg("spawner poll failed")
			}
		}

	case eventsource.KindTaskSuspended:
		w.shared.notifySuspend()

	case eventsource.KindWorkerChanged:
		w.refreshLeader(ctx)

	case eventsource.KindTaskCompleted, eventsource.KindNotificationArrived, eventsource.KindLogAppended:
		// Nothing to do here: notifications are consumed by the Notify
		// plugin's own suspend/resume path, completions and log lines are
		// purely informational to the dispatch loop.

	case eventsource.KindLagged:
		// Notifications may have been dropped; conservatively re-derive
		// everything this loop depends on instead of trusting the gap.
		w.shared.Metrics.RecordEventSourceLag()
		if err := w.spawner.Poll(ctx); err != nil {
			w.shared.Log.Warn().Err(err).Msg("spawner poll after lag failed")
		}
		w.refreshLeader(ctx)
	}
}
