package txn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kosarica/durable/internal/store"
)

// Replay paths never touch the store, so these exercise State with a nil
// *store.Store the way a fresh executor replays a task's history before
// reaching the live tail (spec.md §4.5).

func TestEnterReplaysMatchingLabel(t *testing.T) {
	events := []store.Event{{TaskID: 1, Index: 0, Label: "sleep", Value: []byte(`{"ms":100}`)}}
	s := NewState(nil, 1, 1, events)

	called := false
	got := s.Enter(context.Background(), "sleep", func(ctx context.Context) ([]byte, *string, error) {
		called = true
		return nil, nil, nil
	})

	assert.False(t, called, "body must not run on replay")
	assert.Equal(t, []byte(`{"ms":100}`), got)
	assert.Equal(t, int32(1), s.Index())
}

func TestEnterPanicsOnLabelMismatch(t *testing.T) {
	events := []store.Event{{TaskID: 1, Index: 0, Label: "sleep", Value: []byte(`1`)}}
	s := NewState(nil, 1, 1, events)

	defer func() {
		r := recover()
		require.NotNil(t, r)
		dv, ok := r.(DeterminismViolation)
		require.True(t, ok, "expected DeterminismViolation, got %T", r)
		assert.Equal(t, int32(0), dv.Index)
		assert.Equal(t, "sleep", dv.ExpectedLabel)
		assert.Equal(t, "http_fetch", dv.ActualLabel)
	}()

	s.Enter(context.Background(), "http_fetch", func(ctx context.Context) ([]byte, *string, error) {
		return nil, nil, nil
	})
}

func TestEnterPropagatesBodyErrorAsPanic(t *testing.T) {
	s := NewState(nil, 1, 1, nil)
	wantErr := assert.AnError

	defer func() {
		r := recover()
		require.NotNil(t, r)
		assert.Equal(t, wantErr, r)
	}()

	s.Enter(context.Background(), "anything", func(ctx context.Context) ([]byte, *string, error) {
		return nil, nil, wantErr
	})
}

func TestSuspendReplayIsANoop(t *testing.T) {
	events := []store.Event{{TaskID: 1, Index: 0, Label: "suspend", Value: []byte(`{"wakeup_at":null}`)}}
	s := NewState(nil, 1, 1, events)

	assert.NotPanics(t, func() {
		s.Suspend(context.Background(), nil)
	})
	assert.Equal(t, int32(1), s.Index())
}

func TestEnterNotifyReplayNotifyBranch(t *testing.T) {
	events := []store.Event{{TaskID: 1, Index: 0, Label: "notify", Value: []byte(`{"event":"ping"}`)}}
	s := NewState(nil, 1, 1, events)

	val := s.EnterNotify(context.Background(), func(ctx context.Context) ([]byte, *string, bool, error) {
		t.Fatal("attempt must not run on replay")
		return nil, nil, false, nil
	})

	assert.Equal(t, []byte(`{"event":"ping"}`), val)
}

func TestEnterNotifyReplayUnexpectedLabelPanics(t *testing.T) {
	events := []store.Event{{TaskID: 1, Index: 0, Label: "sleep", Value: []byte(`1`)}}
	s := NewState(nil, 1, 1, events)

	defer func() {
		r := recover()
		require.NotNil(t, r)
		_, ok := r.(DeterminismViolation)
		assert.True(t, ok)
	}()

	s.EnterNotify(context.Background(), func(ctx context.Context) ([]byte, *string, bool, error) {
		return nil, nil, false, nil
	})
}
