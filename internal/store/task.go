package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/kosarica/durable/internal/durableerr"
)

// ClaimedTask is a row returned by ClaimReadyTasks, enough to start an
// executor without a second round trip.
type ClaimedTask struct {
	ID     int64
	Name   string
	WasmID int64
	Data   []byte
}

// ClaimReadyTasks atomically claims up to limit tasks for workerID: rows
// that are unowned-and-active, or already hinted at this worker by a prior
// wake-assignment (the in-memory "ready" state — see IsLogicallyReady).
// FOR NO KEY UPDATE SKIP LOCKED is required: it is the only correct way to
// split work across concurrent workers under the store's lock model.
func (s *Store) ClaimReadyTasks(ctx context.Context, workerID int64, limit int) ([]ClaimedTask, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `
		WITH selected AS (
			SELECT id FROM durable.task
			WHERE wasm IS NOT NULL
			  AND ((state = 'active' AND running_on IS NULL)
			    OR (state = 'active' AND running_on = $1))
			ORDER BY id ASC
			LIMIT $2
			FOR NO KEY UPDATE SKIP LOCKED
		)
		UPDATE durable.task t
		SET state = 'active', running_on = $1
		FROM selected
		WHERE t.id = selected.id
		RETURNING t.id, t.name, t.wasm, t.data
	`, workerID, limit)
	if err != nil {
		return nil, wrapStoreErr("claim ready tasks", err)
	}
	defer rows.Close()

	var claimed []ClaimedTask
	for rows.Next() {
		var c ClaimedTask
		if err := rows.Scan(&c.ID, &c.Name, &c.WasmID, &c.Data); err != nil {
			return nil, wrapStoreErr("scan claimed task", err)
		}
		claimed = append(claimed, c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreErr("claim ready tasks", err)
	}
	return claimed, nil
}

// ReleaseTask clears running_on without changing state, used when the
// spawner claimed more tasks than max_tasks allows, or when an executor
// hits an internal error and must let another worker retry (spec.md §4.5).
func (s *Store) ReleaseTask(ctx context.Context, taskID int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE durable.task SET running_on = NULL WHERE id = $1
	`, taskID)
	if err != nil {
		return wrapStoreErr("release task", err)
	}
	return nil
}

// AppendEventResult reports whether the append committed or the task has
// been stolen by another worker.
type AppendEventResult struct {
	Stolen       bool
	CurrentOwner *int64
}

// AppendEvent inserts the next event (and optional log line) for taskID,
// guarded by expectedRunningOn: if the task's running_on no longer matches,
// the statement affects zero rows and the executor must treat this as a
// steal (spec.md §4.5) rather than retry.
func (s *Store) AppendEvent(ctx context.Context, taskID int64, index int32, label string, value []byte, logMessage *string, expectedRunningOn int64) (AppendEventResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return AppendEventResult{}, wrapStoreErr("append event: begin", err)
	}
	defer tx.Rollback(ctx)

	var owner *int64
	err = tx.QueryRow(ctx, `
		SELECT running_on FROM durable.task WHERE id = $1 FOR NO KEY UPDATE
	`, taskID).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AppendEventResult{}, durableerr.Wrap(durableerr.ErrNotFound, "task %d", taskID)
		}
		return AppendEventResult{}, wrapStoreErr("append event: lock task", err)
	}

	if owner == nil || *owner != expectedRunningOn {
		return AppendEventResult{Stolen: true, CurrentOwner: owner}, nil
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO durable.event (task_id, index, label, value) VALUES ($1, $2, $3, $4)
	`, taskID, index, label, value); err != nil {
		return AppendEventResult{}, wrapStoreErr("append event: insert", err)
	}

	if logMessage != nil {
		if _, err := tx.Exec(ctx, `
			INSERT INTO durable.log (task_id, index, message) VALUES ($1, $2, $3)
		`, taskID, index, *logMessage); err != nil {
			return AppendEventResult{}, wrapStoreErr("append event: log", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return AppendEventResult{}, wrapStoreErr("append event: commit", err)
	}
	return AppendEventResult{}, nil
}

// BeginDatabaseTxn reserves a pgx.Tx for a database-kind transaction body
// (spec.md §4.5), shared between the guest's SQL calls and the eventual
// event-row write so both commit atomically or neither does. The caller is
// responsible for calling CommitDatabaseTxn (which also appends the event)
// or rolling back.
func (s *Store) BeginDatabaseTxn(ctx context.Context) (pgx.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, wrapStoreErr("begin database txn", err)
	}
	return tx, nil
}

// CommitDatabaseTxn appends the event row inside the already-open tx and
// commits, so the guest's SQL side effects and the event record persist
// atomically — either both or neither.
func CommitDatabaseTxn(ctx context.Context, tx pgx.Tx, taskID int64, index int32, label string, value []byte, expectedRunningOn int64) (AppendEventResult, error) {
	var owner *int64
	err := tx.QueryRow(ctx, `
		SELECT running_on FROM durable.task WHERE id = $1 FOR NO KEY UPDATE
	`, taskID).Scan(&owner)
	if err != nil {
		return AppendEventResult{}, wrapStoreErr("commit database txn: lock task", err)
	}
	if owner == nil || *owner != expectedRunningOn {
		return AppendEventResult{Stolen: true, CurrentOwner: owner}, nil
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO durable.event (task_id, index, label, value) VALUES ($1, $2, $3, $4)
	`, taskID, index, label, value); err != nil {
		return AppendEventResult{}, wrapStoreErr("commit database txn: insert event", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return AppendEventResult{}, wrapStoreErr("commit database txn", err)
	}
	return AppendEventResult{}, nil
}

// Suspend transitions a task active -> suspended, records the wakeup
// deadline (nil means "wake only on notification"), and clears running_on.
func (s *Store) Suspend(ctx context.Context, taskID int64, wakeupAt *time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE durable.task
		SET state = 'suspended', wakeup_at = $2, running_on = NULL
		WHERE id = $1
	`, taskID, wakeupAt)
	if err != nil {
		return wrapStoreErr("suspend", err)
	}
	return nil
}

// WakeDueTasks transitions suspended tasks whose wakeup_at has elapsed back
// to the logical "ready" state, hinting running_on at a pseudorandom live
// worker (heartbeat_at within livenessThreshold of now, spec.md §4.1) so
// the claim query picks them up quickly without handing them to a
// just-died worker still awaiting a liveness sweep. Leader-only.
func (s *Store) WakeDueTasks(ctx context.Context, now time.Time, livenessThreshold time.Duration) (int64, error) {
	cutoff := now.Add(-livenessThreshold)
	tag, err := s.pool.Exec(ctx, `
		WITH live AS (
			SELECT id FROM durable.worker WHERE heartbeat_at >= $2
		), due AS (
			SELECT id FROM durable.task
			WHERE state = 'suspended' AND wakeup_at <= $1
			FOR NO KEY UPDATE SKIP LOCKED
		)
		UPDATE durable.task t
		SET state = 'active',
		    running_on = (SELECT id FROM live ORDER BY random() LIMIT 1),
		    wakeup_at = NULL
		FROM due
		WHERE t.id = due.id
	`, now, cutoff)
	if err != nil {
		return 0, wrapStoreErr("wake due tasks", err)
	}
	return tag.RowsAffected(), nil
}

// Complete transitions a task to a terminal state (complete or failed),
// releasing the wasm reference per the wasm-non-null-iff-active-or-suspended
// invariant (spec.md §3).
func (s *Store) Complete(ctx context.Context, taskID int64, outcome TaskState, completedAt time.Time) error {
	if outcome != TaskComplete && outcome != TaskFailed {
		return errors.New("store: Complete outcome must be complete or failed")
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE durable.task
		SET state = $2, completed_at = $3, wasm = NULL, running_on = NULL
		WHERE id = $1
	`, taskID, outcome, completedAt)
	if err != nil {
		return wrapStoreErr("complete", err)
	}
	return nil
}

// SubmitTask inserts a new task in the active state, owned by no worker,
// for the out-of-scope client CLI / durablectl to call.
func (s *Store) SubmitTask(ctx context.Context, name string, wasmID int64, data []byte) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO durable.task (name, state, wasm, data)
		VALUES ($1, 'active', $2, $3)
		RETURNING id
	`, name, wasmID, data).Scan(&id)
	if err != nil {
		return 0, wrapStoreErr("submit task", err)
	}
	return id, nil
}

// GetTask fetches a task row by id.
func (s *Store) GetTask(ctx context.Context, taskID int64) (Task, error) {
	var t Task
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, state, running_on, created_at, completed_at, wakeup_at, wasm, data
		FROM durable.task WHERE id = $1
	`, taskID).Scan(&t.ID, &t.Name, &t.State, &t.RunningOn, &t.CreatedAt, &t.CompletedAt, &t.WakeupAt, &t.WasmID, &t.Data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Task{}, durableerr.Wrap(durableerr.ErrNotFound, "task %d", taskID)
		}
		return Task{}, wrapStoreErr("get task", err)
	}
	return t, nil
}

// StuckSuspendedWithNotifications returns suspended tasks that have at
// least one queued notification, for the stuck-notify loop (spec.md
// §4.3.5) to re-drive when a wake transition was lost mid-crash.
func (s *Store) StuckSuspendedWithNotifications(ctx context.Context) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT t.id
		FROM durable.task t
		JOIN durable.notification n ON n.task_id = t.id
		WHERE t.state = 'suspended'
	`)
	if err != nil {
		return nil, wrapStoreErr("stuck suspended scan", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, wrapStoreErr("scan stuck task", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// WakeOne forces a single suspended task to the logical "ready" state,
// hinting at targetWorker. Used by the stuck-notify loop;
// EnqueueNotification re-arms with its own update, which leaves the task
// unowned.
func (s *Store) WakeOne(ctx context.Context, taskID, targetWorker int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE durable.task
		SET state = 'active', running_on = $2, wakeup_at = NULL
		WHERE id = $1 AND state = 'suspended'
	`, taskID, targetWorker)
	if err != nil {
		return wrapStoreErr("wake one", err)
	}
	return nil
}

// GarbageCollectTasks deletes terminal tasks older than retention, measured
// against now rather than reaching around the injected clock seam (spec.md
// §9).
func (s *Store) GarbageCollectTasks(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	cutoff := now.Add(-retention)
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM durable.task
		WHERE state IN ('complete', 'failed') AND completed_at < $1
	`, cutoff)
	if err != nil {
		return 0, wrapStoreErr("gc tasks", err)
	}
	return tag.RowsAffected(), nil
}

// AppendDiagnosticLog inserts a log line outside the replay index space
// (spec.md §4.5's error/panic diagnostics), never read back during replay.
func (s *Store) AppendDiagnosticLog(ctx context.Context, taskID int64, index int32, message string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO durable.log (task_id, index, message) VALUES ($1, $2, $3)
	`, taskID, index, message)
	if err != nil {
		return wrapStoreErr("append diagnostic log", err)
	}
	return nil
}

// EarliestWakeup returns the smallest wakeup_at among suspended tasks, for
// the leader loop to size its sleep. ok is false if no task is pending.
func (s *Store) EarliestWakeup(ctx context.Context) (t time.Time, ok bool, err error) {
	var min *time.Time
	err = s.pool.QueryRow(ctx, `
		SELECT MIN(wakeup_at) FROM durable.task WHERE state = 'suspended' AND wakeup_at IS NOT NULL
	`).Scan(&min)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, wrapStoreErr("earliest wakeup", err)
	}
	if min == nil {
		return time.Time{}, false, nil
	}
	return *min, true, nil
}
