package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnthrottledSchedulerNeverBlocks(t *testing.T) {
	var s unthrottledScheduler
	assert.NoError(t, s.Acquire(context.Background()))
}

func TestUnthrottledSchedulerRespectsCancelledContext(t *testing.T) {
	var s unthrottledScheduler
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, s.Acquire(ctx))
}
