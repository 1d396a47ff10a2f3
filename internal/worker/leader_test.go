package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kosarica/durable/config"
	"github.com/kosarica/durable/internal/testsupport"
)

func TestRefreshLeaderPicksSmallestLiveID(t *testing.T) {
	clock := testsupport.NewFakeClock(time.Now())
	cfg := config.WorkerConfig{LivenessThreshold: time.Minute}
	w, id1 := newTestWorker(t, cfg, clock)
	ctx := context.Background()

	id2, err := w.shared.Store.RegisterWorker(ctx)
	require.NoError(t, err)
	require.Greater(t, id2, id1)

	w.refreshLeader(ctx)
	assert.Equal(t, id1, w.shared.leader.Load(), "smallest live worker id should win leadership")
}

func TestRefreshLeaderLeavesMailboxUnchangedWhenNoLiveWorker(t *testing.T) {
	clock := testsupport.NewFakeClock(time.Now())
	cfg := config.WorkerConfig{LivenessThreshold: time.Minute}
	w, id := newTestWorker(t, cfg, clock)
	ctx := context.Background()

	_, err := w.shared.Store.Pool().Exec(ctx,
		`UPDATE durable.worker SET heartbeat_at = now() - interval '1 hour' WHERE id = $1`, id)
	require.NoError(t, err)

	w.refreshLeader(ctx)
	assert.Equal(t, id, w.shared.leader.Load(), "a FindLeader miss must not clobber the last known leader")
}
