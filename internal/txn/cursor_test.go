package txn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kosarica/durable/internal/store"
)

func TestCursorReplaysRecordedEvents(t *testing.T) {
	events := []store.Event{
		{TaskID: 1, Index: 0, Label: "a", Value: []byte(`1`)},
		{TaskID: 1, Index: 1, Label: "b", Value: []byte(`2`)},
	}
	c := NewCursor(events)

	require.True(t, c.HasNext())
	assert.Equal(t, int32(0), c.Index())
	assert.Equal(t, "a", c.Peek().Label)

	c.Advance(c.Peek())
	require.True(t, c.HasNext())
	assert.Equal(t, int32(1), c.Index())
	assert.Equal(t, "b", c.Peek().Label)

	c.Advance(c.Peek())
	assert.False(t, c.HasNext())
	assert.Equal(t, int32(2), c.Index())
}

func TestCursorAppendsBeyondRecordedEvents(t *testing.T) {
	c := NewCursor(nil)
	assert.False(t, c.HasNext())
	assert.Equal(t, int32(0), c.Index())

	c.Advance(store.Event{TaskID: 1, Index: 0, Label: "new", Value: []byte(`"v"`)})
	assert.False(t, c.HasNext())
	assert.Equal(t, int32(1), c.Index())
}

func TestCursorMixedReplayThenAppend(t *testing.T) {
	events := []store.Event{{TaskID: 1, Index: 0, Label: "a", Value: []byte(`1`)}}
	c := NewCursor(events)

	c.Advance(c.Peek())
	require.False(t, c.HasNext())

	c.Advance(store.Event{TaskID: 1, Index: 1, Label: "b", Value: []byte(`2`)})
	assert.Equal(t, int32(2), c.Index())
	assert.False(t, c.HasNext())
}
