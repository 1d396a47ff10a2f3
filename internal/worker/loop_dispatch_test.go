package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kosarica/durable/config"
	"github.com/kosarica/durable/internal/eventsource"
	"github.com/kosarica/durable/internal/testsupport"
)

func TestHandleEventTaskReadyPollsSpawner(t *testing.T) {
	ctx := context.Background()
	clock := testsupport.NewFakeClock(time.Now())
	w, id := newTestWorker(t, config.WorkerConfig{MaxTasks: 4}, clock)
	w.executors = newExecutorSet()
	w.spawner = NewSpawner(w.shared, id, w.executors)

	task := claimableUnownedTask(ctx, t, w, "dispatch-ready")
	// Release it back to unowned-active so the spawner has something to
	// claim when handleEvent polls.
	_, err := w.shared.Store.Pool().Exec(ctx, `UPDATE durable.task SET running_on = NULL WHERE id = $1`, task)
	require.NoError(t, err)

	w.handleEvent(ctx, eventsource.Event{Kind: eventsource.KindTaskReady})

	got, err := w.shared.Store.GetTask(ctx, task)
	require.NoError(t, err)
	require.NotNil(t, got.RunningOn)
	assert.Equal(t, id, *got.RunningOn)
}

func TestHandleEventTaskSuspendedWakesSuspendChannel(t *testing.T) {
	clock := testsupport.NewFakeClock(time.Now())
	w, _ := newTestWorker(t, config.WorkerConfig{MaxTasks: 4}, clock)
	w.executors = newExecutorSet()
	w.spawner = NewSpawner(w.shared, w.id, w.executors)

	w.handleEvent(context.Background(), eventsource.Event{Kind: eventsource.KindTaskSuspended})

	select {
	case <-w.shared.suspend:
	default:
		t.Fatal("expected notifySuspend to have buffered a wakeup")
	}
}

func TestHandleEventWorkerChangedRefreshesLeader(t *testing.T) {
	ctx := context.Background()
	clock := testsupport.NewFakeClock(time.Now())
	// FindLeader filters on heartbeat_at >= now()-LivenessThreshold; a zero
	// threshold would exclude both workers' already-past heartbeat_at and
	// leave refreshLeader a no-op.
	w, id := newTestWorker(t, config.WorkerConfig{MaxTasks: 4, LivenessThreshold: time.Minute}, clock)
	w.executors = newExecutorSet()
	w.spawner = NewSpawner(w.shared, id, w.executors)

	// Register a second, lower-id worker so refreshLeader has something
	// new to discover. RegisterWorker ids are assigned in increasing
	// order by the sequence, so this worker cannot already be the leader
	// unless it happens to be the smallest live id.
	otherID, err := w.shared.Store.RegisterWorker(ctx)
	require.NoError(t, err)
	defer w.shared.Store.DeleteWorker(ctx, otherID)

	w.handleEvent(ctx, eventsource.Event{Kind: eventsource.KindWorkerChanged})

	want := id
	if otherID < id {
		want = otherID
	}
	assert.Equal(t, want, w.shared.leader.Load())
}

func TestHandleEventLaggedReconcilesSpawnerAndLeaderAndRecordsMetric(t *testing.T) {
	ctx := context.Background()
	clock := testsupport.NewFakeClock(time.Now())
	w, id := newTestWorker(t, config.WorkerConfig{MaxTasks: 4}, clock)
	w.executors = newExecutorSet()
	w.spawner = NewSpawner(w.shared, id, w.executors)

	task := claimableUnownedTask(ctx, t, w, "dispatch-lagged")
	_, err := w.shared.Store.Pool().Exec(ctx, `UPDATE durable.task SET running_on = NULL WHERE id = $1`, task)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		w.handleEvent(ctx, eventsource.Event{Kind: eventsource.KindLagged})
	})

	got, err := w.shared.Store.GetTask(ctx, task)
	require.NoError(t, err)
	require.NotNil(t, got.RunningOn, "a Lagged sweep must still re-poll the spawner")
}

func TestHandleEventIgnoresPurelyInformationalKinds(t *testing.T) {
	clock := testsupport.NewFakeClock(time.Now())
	w, _ := newTestWorker(t, config.WorkerConfig{MaxTasks: 4}, clock)
	w.executors = newExecutorSet()
	w.spawner = NewSpawner(w.shared, w.id, w.executors)

	for _, kind := range []eventsource.Kind{eventsource.KindTaskCompleted, eventsource.KindNotificationArrived, eventsource.KindLogAppended} {
		assert.NotPanics(t, func() {
			w.handleEvent(context.Background(), eventsource.Event{Kind: kind})
		})
	}
}

// claimableUnownedTask submits and claims a throwaway task for w, so tests
// can then release it back to unowned (running_on = NULL) and observe
// whether a dispatch path re-claims it.
func claimableUnownedTask(ctx context.Context, t *testing.T, w *Worker, name string) int64 {
	t.Helper()
	task := claimWasmTask(ctx, t, w.shared.Store, w.id, name, guestOK)
	return task.ID
}
