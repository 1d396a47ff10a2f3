package store

import "time"

// TaskState mirrors the durable.task_state Postgres enum (spec.md §3/§6).
// Conforming implementations MUST preserve these exact string values; they
// form the wire contract with external clients.
type TaskState string

const (
	TaskActive    TaskState = "active"
	TaskSuspended TaskState = "suspended"
	TaskComplete  TaskState = "complete"
	TaskFailed    TaskState = "failed"
)

// Worker is one row of durable.worker.
type Worker struct {
	ID          int64
	StartedAt   time.Time
	HeartbeatAt time.Time
}

// Wasm is one row of durable.wasm: a content-addressed binary.
type Wasm struct {
	ID       int64
	Hash     [32]byte
	Binary   []byte
	Name     string
	LastUsed time.Time
}

// Task is one row of durable.task.
type Task struct {
	ID          int64
	Name        string
	State       TaskState
	RunningOn   *int64
	CreatedAt   time.Time
	CompletedAt *time.Time
	WakeupAt    *time.Time
	WasmID      *int64
	Data        []byte // opaque JSON
}

// Event is one row of durable.event: an immutable record of a replayed
// host call, keyed by (task_id, index).
type Event struct {
	TaskID int64
	Index  int32
	Label  string
	Value  []byte // JSON
}

// Notification is one row of durable.notification: an inbound signal
// queued for a task, consumed FIFO.
type Notification struct {
	ID        int64
	TaskID    int64
	CreatedAt time.Time
	Event     string
	Data      []byte // JSON
}

// LogLine is one row of durable.log, sharing the event index space.
type LogLine struct {
	TaskID  int64
	Index   int32
	Message string
}

// IsLogicallyReady reports whether a task, from the claim query's point of
// view, is eligible to be driven by worker w. "ready" is never a persisted
// task_state value (see DESIGN.md "Open Question decisions"): it is the
// in-memory view over state=active with running_on pointing at w, or
// state=active with no owner at all.
func IsLogicallyReady(t Task, w int64) bool {
	if t.State != TaskActive {
		return false
	}
	return t.RunningOn == nil || *t.RunningOn == w
}
