package txn

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/kosarica/durable/internal/store"
)

// Kind distinguishes a regular transaction from one that reserves a
// database connection for its body (spec.md §4.5).
type Kind int

const (
	Regular Kind = iota
	Database
)

// Body is the work performed the first time a transaction is reached
// live (not on replay). It returns the JSON value to record, an optional
// free-form log line, and an error that aborts the whole executor run
// (store unavailable, etc — not a guest-visible error, which must instead
// be encoded into value by the caller).
type Body func(ctx context.Context) (value []byte, logMessage *string, err error)

// DatabaseBody is Body's database-kind counterpart: it runs inside a
// pgx.Tx shared with the guest's SQL calls, committing atomically with the
// event row.
type DatabaseBody func(ctx context.Context, tx pgx.Tx) (value []byte, logMessage *string, err error)

// State drives one task's transaction protocol: replay recorded events in
// order, or execute and record new ones. It holds no back-reference to the
// owning worker or executor (see DESIGN.md's arena-pattern note) — only
// the store and the ids it needs.
type State struct {
	store    *store.Store
	taskID   int64
	workerID int64
	cursor   *Cursor
}

// NewState builds a State over a task's already-loaded event log.
func NewState(s *store.Store, taskID, workerID int64, events []store.Event) *State {
	return &State{store: s, taskID: taskID, workerID: workerID, cursor: NewCursor(events)}
}

// Index reports the cursor's current position, for diagnostics.
func (s *State) Index() int32 { return s.cursor.Index() }

// Enter implements the replay-or-execute protocol for a regular
// transaction. On replay it verifies the label and returns the recorded
// value without running body. Live, it runs body, appends the event, and
// panics with Stolen if the append's ownership guard failed.
func (s *State) Enter(ctx context.Context, label string, body Body) []byte {
	if s.cursor.HasNext() {
		ev := s.cursor.Peek()
		if ev.Label != label {
			panic(DeterminismViolation{Index: s.cursor.Index(), ExpectedLabel: ev.Label, ActualLabel: label})
		}
		s.cursor.Advance(ev)
		return ev.Value
	}

	value, logMessage, err := body(ctx)
	if err != nil {
		panic(err)
	}

	index := s.cursor.Index()
	res, err := s.store.AppendEvent(ctx, s.taskID, index, label, value, logMessage, s.workerID)
	if err != nil {
		panic(err)
	}
	if res.Stolen {
		panic(Stolen{CurrentOwner: res.CurrentOwner})
	}

	s.cursor.Advance(store.Event{TaskID: s.taskID, Index: index, Label: label, Value: value})
	return value
}

// EnterDatabase is Enter's database-kind counterpart: body runs inside a
// pgx.Tx that commits atomically with the event row (spec.md §4.5 — "This
// is how durable achieves exactly-once database side effects").
func (s *State) EnterDatabase(ctx context.Context, label string, body DatabaseBody) []byte {
	if s.cursor.HasNext() {
		ev := s.cursor.Peek()
		if ev.Label != label {
			panic(DeterminismViolation{Index: s.cursor.Index(), ExpectedLabel: ev.Label, ActualLabel: label})
		}
		s.cursor.Advance(ev)
		return ev.Value
	}

	tx, err := s.store.BeginDatabaseTxn(ctx)
	if err != nil {
		panic(err)
	}
	defer tx.Rollback(ctx)

	value, _, err := body(ctx, tx)
	if err != nil {
		panic(err)
	}

	index := s.cursor.Index()
	res, err := store.CommitDatabaseTxn(ctx, tx, s.taskID, index, label, value, s.workerID)
	if err != nil {
		panic(err)
	}
	if res.Stolen {
		panic(Stolen{CurrentOwner: res.CurrentOwner})
	}

	s.cursor.Advance(store.Event{TaskID: s.taskID, Index: index, Label: label, Value: value})
	return value
}

// Suspend implements the suspending-operation protocol: on replay it
// simply consumes the recorded suspend event and returns, letting the
// guest re-enter the host call and continue (spec.md §4.5's "a fresh
// executor replays... continues"). Live, it records the suspend event,
// transitions the task in the store, and panics with Suspended so
// Executor.Run tears down without further writes.
func (s *State) Suspend(ctx context.Context, wakeupAt *time.Time) {
	replaying := s.cursor.HasNext()

	s.Enter(ctx, "suspend", func(ctx context.Context) ([]byte, *string, error) {
		return marshalSuspend(wakeupAt), nil, nil
	})

	if replaying {
		return
	}

	if err := s.store.Suspend(ctx, s.taskID, wakeupAt); err != nil {
		panic(err)
	}

	var millis *int64
	if wakeupAt != nil {
		m := wakeupAt.UnixMilli()
		millis = &m
	}
	panic(Suspended{WakeupAt: millis})
}

// NotifyAttempt is run live by EnterNotify to try dequeuing a queued
// notification. got is false if none is queued, in which case EnterNotify
// suspends instead of recording a "notify" event.
type NotifyAttempt func(ctx context.Context) (value []byte, logMessage *string, got bool, err error)

// EnterNotify implements notification_blocking()'s dual nature (spec.md
// §4.6): if a notification is already queued, it is recorded under label
// "notify" like a regular transaction and the call returns, replayable like
// any other event. If none is queued, the call suspends without recording
// anything — the next claim re-enters this same index live, not via replay,
// and retries the dequeue — mirroring original_source's single
// notification_blocking transaction, where suspension is a bare state
// transition and only a delivered notification becomes the transaction's
// event.
func (s *State) EnterNotify(ctx context.Context, attempt NotifyAttempt) []byte {
	if s.cursor.HasNext() {
		ev := s.cursor.Peek()
		if ev.Label != "notify" {
			panic(DeterminismViolation{Index: s.cursor.Index(), ExpectedLabel: ev.Label, ActualLabel: "notify"})
		}
		s.cursor.Advance(ev)
		return ev.Value
	}

	val, logMessage, got, err := attempt(ctx)
	if err != nil {
		panic(err)
	}

	if got {
		index := s.cursor.Index()
		res, err := s.store.AppendEvent(ctx, s.taskID, index, "notify", val, logMessage, s.workerID)
		if err != nil {
			panic(err)
		}
		if res.Stolen {
			panic(Stolen{CurrentOwner: res.CurrentOwner})
		}
		s.cursor.Advance(store.Event{TaskID: s.taskID, Index: index, Label: "notify", Value: val})
		return val
	}

	if err := s.store.Suspend(ctx, s.taskID, nil); err != nil {
		panic(err)
	}
	panic(Suspended{WakeupAt: nil})
}

func marshalSuspend(wakeupAt *time.Time) []byte {
	b, _ := json.Marshal(struct {
		WakeupAt *time.Time `json:"wakeup_at"`
	}{wakeupAt})
	return b
}
