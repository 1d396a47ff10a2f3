package worker

import "sync"

// shutdownFlag is a one-shot broadcast signal, the Go analogue of
// original_source/crates/durable-runtime/src/flag.rs's ShutdownFlag: every
// loop selects on Wait() alongside its own timers/channels, and Raise is
// safe to call from any goroutine any number of times.
type shutdownFlag struct {
	once sync.Once
	ch   chan struct{}
}

func newShutdownFlag() *shutdownFlag {
	return &shutdownFlag{ch: make(chan struct{})}
}

// Raise signals every waiter. Safe to call more than once or concurrently.
func (f *shutdownFlag) Raise() {
	f.once.Do(func() { close(f.ch) })
}

// IsRaised reports whether Raise has been called, without blocking.
func (f *shutdownFlag) IsRaised() bool {
	select {
	case <-f.ch:
		return true
	default:
		return false
	}
}

// Wait returns a channel that closes once Raise has been called.
func (f *shutdownFlag) Wait() <-chan struct{} {
	return f.ch
}
