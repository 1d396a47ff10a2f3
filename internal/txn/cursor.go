// Package txn implements the transaction protocol of spec.md §4.5: every
// non-deterministic host call is wrapped in transaction(label, kind),
// which either replays a recorded event or executes the body and records
// it. Suspension, theft, and determinism violations are modeled as typed
// panics recovered at the Executor's top level (see Executor.Run) — wazero
// invokes host functions synchronously on the calling goroutine, so Go
// does not need the async-host/sync-guest thread bridge the Rust runtime
// uses; a panic unwinds the guest call stack exactly the way "the executor
// is torn down" is described in spec.md §4.5.
package txn

import "github.com/kosarica/durable/internal/store"

// Cursor walks the event log loaded for a task. index is the dense
// monotone position (spec.md §3): the next event replayed or newly
// appended is always at this index.
type Cursor struct {
	events []store.Event
	index  int32
}

// NewCursor wraps events, ordered by index ascending as LoadEvents returns
// them.
func NewCursor(events []store.Event) *Cursor {
	return &Cursor{events: events}
}

// HasNext reports whether the cursor still has a recorded event to replay.
func (c *Cursor) HasNext() bool {
	return int(c.index) < len(c.events)
}

// Peek returns the next recorded event without consuming it.
func (c *Cursor) Peek() store.Event {
	return c.events[c.index]
}

// Index is the index the next event — replayed or newly executed — occupies.
func (c *Cursor) Index() int32 {
	return c.index
}

// Advance consumes the next recorded event, or records a newly-appended
// one, moving the index forward by one.
func (c *Cursor) Advance(appended store.Event) {
	if int(c.index) == len(c.events) {
		c.events = append(c.events, appended)
	}
	c.index++
}
