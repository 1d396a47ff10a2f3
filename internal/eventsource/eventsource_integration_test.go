package eventsource

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kosarica/durable/internal/testsupport"
)

// TestSourceRunReceivesRealNotifyFromSubmitTask drives a real
// LISTEN/NOTIFY round trip: submit a task against the live schema's
// trigger (durable.task's AFTER INSERT notifies "durable:task", per
// spec.md §4.2) and confirm Source.Run surfaces it as a KindTaskReady
// event without this test ever touching the wire format by hand.
func TestSourceRunReceivesRealNotifyFromSubmitTask(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.NewPool(ctx, t)
	connString := pool.Config().ConnConfig.ConnString()

	src := New(connString, zerolog.Nop())
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = src.Run(runCtx) }()

	// Give runOnce's LISTEN a moment to land before the insert races it.
	time.Sleep(100 * time.Millisecond)

	var wasmID int64
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO durable.wasm (hash, binary, name, last_used) VALUES ($1, $2, 'probe', now()) RETURNING id`,
		make([]byte, 32), []byte("x")).Scan(&wasmID))

	var taskID int64
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO durable.task (name, state, wasm, data) VALUES ('probe', 'active', $1, '{}') RETURNING id`,
		wasmID).Scan(&taskID))

	select {
	case evt := <-src.Events():
		assert.Equal(t, KindTaskReady, evt.Kind)
		assert.Equal(t, taskID, evt.TaskID)
		assert.Nil(t, evt.RunningOn)
	case <-time.After(5 * time.Second):
		t.Fatal("did not receive a durable:task notification for the inserted task")
	}
}
