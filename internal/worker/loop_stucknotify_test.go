package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kosarica/durable/config"
	"github.com/kosarica/durable/internal/store"
	"github.com/kosarica/durable/internal/testsupport"
)

func TestStuckNotifyLoopRewakesWhenLeader(t *testing.T) {
	clock := testsupport.NewFakeClock(time.Now())
	w, id := newTestWorker(t, config.WorkerConfig{}, clock)
	ctx := context.Background()

	task := claimWasmTask(ctx, t, w.shared.Store, id, "stuck-notify", guestNotifySuspend)
	NewExecutor(w.shared, task, id).Run(ctx)
	suspended, err := w.shared.Store.GetTask(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, store.TaskSuspended, suspended.State)

	// Insert the notification directly rather than through
	// EnqueueNotification, which would itself rearm the task — simulating
	// a crash between the notification commit and the rearm that
	// stuckNotifyLoop exists to recover from.
	_, err = w.shared.Store.Pool().Exec(ctx,
		`INSERT INTO durable.notification (task_id, event, data) VALUES ($1, 'woke', '{}')`, task.ID)
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- w.stuckNotifyLoop(runCtx) }()

	clock.Advance(stuckNotifyInterval * 2)

	require.Eventually(t, func() bool {
		got, err := w.shared.Store.GetTask(ctx, task.ID)
		return err == nil && got.State == store.TaskActive
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-errCh:
	case <-time.After(time.Second):
		t.Fatal("stuckNotifyLoop did not stop after context cancellation")
	}
}

func TestStuckNotifyLoopDoesNothingWhenNotLeader(t *testing.T) {
	clock := testsupport.NewFakeClock(time.Now())
	w, id := newTestWorker(t, config.WorkerConfig{}, clock)
	ctx := context.Background()
	w.shared.leader.Store(id + 1)

	task := claimWasmTask(ctx, t, w.shared.Store, id, "not-leader-stuck", guestNotifySuspend)
	NewExecutor(w.shared, task, id).Run(ctx)

	_, err := w.shared.Store.Pool().Exec(ctx,
		`INSERT INTO durable.notification (task_id, event, data) VALUES ($1, 'woke', '{}')`, task.ID)
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- w.stuckNotifyLoop(runCtx) }()

	clock.Advance(stuckNotifyInterval * 2)
	time.Sleep(50 * time.Millisecond)

	got, err := w.shared.Store.GetTask(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, store.TaskSuspended, got.State, "a non-leader worker must not rewake stuck tasks")

	cancel()
	<-errCh
}
