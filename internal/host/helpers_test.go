package host

import (
	"context"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kosarica/durable/internal/store"
)

// submitClaimedTestTask registers a throwaway wasm binary, submits a task
// against it, and claims it for a freshly registered worker, so the live
// (non-replay) branch of a plugin's Enter/EnterDatabase/EnterNotify call has
// a real owned task row to append events against. ClaimReadyTasks writes its
// workerID straight into running_on, which carries an FK to durable.worker,
// so a fabricated id would fail here.
func submitClaimedTestTask(ctx context.Context, t *testing.T, s *store.Store, name string) (taskID, workerID int64) {
	t.Helper()

	workerID, err := s.RegisterWorker(ctx)
	require.NoError(t, err)

	binary := []byte("fake-wasm-" + name)
	hash := sha256.Sum256(binary)
	wasmID, err := s.RegisterWasm(ctx, hash, binary, name)
	require.NoError(t, err)

	taskID, err = s.SubmitTask(ctx, name, wasmID, []byte(`{}`))
	require.NoError(t, err)

	claimed, err := s.ClaimReadyTasks(ctx, workerID, 10)
	require.NoError(t, err)
	for _, c := range claimed {
		if c.ID == taskID {
			return taskID, workerID
		}
	}
	t.Fatalf("task %d was not claimed", taskID)
	return 0, 0
}
