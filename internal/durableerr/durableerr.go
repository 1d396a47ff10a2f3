// Package durableerr defines the sentinel error kinds the worker runtime
// distinguishes, so call sites branch with errors.Is/errors.As instead of
// matching on message text.
package durableerr

import (
	"errors"
	"fmt"
)

// Sentinel error kinds from spec.md §7. Wrap with fmt.Errorf("...: %w", ErrX)
// to attach context while keeping errors.Is working.
var (
	// ErrDeterminismViolation means replay found a label mismatch or an
	// unexpected event index. Terminal for the task.
	ErrDeterminismViolation = errors.New("durable: determinism violation")

	// ErrStoreUnavailable means a transient connection or query error
	// against the shared store. Control loops retry with backoff;
	// executors release the task without recording anything.
	ErrStoreUnavailable = errors.New("durable: store unavailable")

	// ErrWasmTrap means the guest module trapped.
	ErrWasmTrap = errors.New("durable: wasm trap")

	// ErrGuestError means the workflow returned an application-level error.
	ErrGuestError = errors.New("durable: guest error")

	// ErrTaskStolen means an event append's running_on guard matched zero
	// rows: another worker now owns this task.
	ErrTaskStolen = errors.New("durable: task stolen")

	// ErrNotFound means the referenced row does not exist.
	ErrNotFound = errors.New("durable: not found")

	// ErrTaskDead means the notify target is in a terminal state.
	ErrTaskDead = errors.New("durable: task dead")

	// ErrLagged means the event source dropped buffered notifications and
	// the caller must conservatively rescan.
	ErrLagged = errors.New("durable: event source lagged")

	// ErrHeartbeatLost means this worker's own row went missing; fatal,
	// initiates shutdown.
	ErrHeartbeatLost = errors.New("durable: heartbeat lost")
)

// Wrap attaches a message to a sentinel while preserving errors.Is(err, kind).
func Wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), kind)
}
