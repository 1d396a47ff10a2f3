package worker

import "sync"

// mailbox holds the latest known cluster leader id, the Go analogue of
// original_source/crates/durable-runtime/src/util/mailbox.rs's Mailbox<i64>:
// readers always see the most recent Store, and a buffered wake channel
// lets the leader loop block until the value actually changes instead of
// polling, without guaranteeing delivery of every intermediate value.
type mailbox struct {
	mu    sync.RWMutex
	value int64
	wake  chan struct{}
}

func newMailbox(initial int64) *mailbox {
	return &mailbox{value: initial, wake: make(chan struct{}, 1)}
}

// Store sets the mailbox's value and wakes any blocked reader if it changed.
func (m *mailbox) Store(v int64) {
	m.mu.Lock()
	changed := m.value != v
	m.value = v
	m.mu.Unlock()

	if changed {
		select {
		case m.wake <- struct{}{}:
		default:
		}
	}
}

// Load returns the current value.
func (m *mailbox) Load() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.value
}

// Changed returns a channel that receives a value each time Store observes
// a change. It is not guaranteed to fire once per change — only that a
// change since the last receive is promptly visible.
func (m *mailbox) Changed() <-chan struct{} {
	return m.wake
}
