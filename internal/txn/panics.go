package txn

import "strconv"

// The three control-flow conditions of spec.md §4.5 that tear the executor
// down mid-guest-call are raised as typed panics rather than threaded
// through every host function's return value, mirroring how the guest's
// own WASM stack is unwound without a continuation-capable runtime.
// The executor's runGuarded recovers these three types at its top level,
// and recovers any other panic too: that fails the task, or releases it
// when the panic value wraps durableerr.ErrStoreUnavailable.

// Suspended is raised after a suspending operation has called
// Store.Suspend. EnterNotify raises it without recording any event.
type Suspended struct {
	WakeupAt *int64 // unix millis, nil if waking only on notification
}

func (Suspended) Error() string { return "durable: task suspended" }

// Stolen is raised when AppendEvent's expected_running_on guard affects
// zero rows: another worker now owns the task.
type Stolen struct {
	CurrentOwner *int64
}

func (Stolen) Error() string { return "durable: task stolen" }

// DeterminismViolation is raised when the cursor's recorded label does not
// match the label the guest presented on replay.
type DeterminismViolation struct {
	Index         int32
	ExpectedLabel string
	ActualLabel   string
}

func (e DeterminismViolation) Error() string {
	return "durable: determinism violation at index " + strconv.Itoa(int(e.Index)) +
		": expected label " + e.ExpectedLabel + ", got " + e.ActualLabel
}
