package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/kosarica/durable/internal/durableerr"
)

// EnqueueNotification inserts a notification for targetTaskID. If the
// target is currently suspended, it is also transitioned to the logical
// "ready" state, unowned, so any worker's next claim picks it up — the
// sender (an operator CLI, or one task notifying another) has no
// privileged knowledge of which worker should run it next. Fails with
// ErrNotFound/ErrTaskDead for non-active, non-suspended targets (spec.md
// §4.1).
func (s *Store) EnqueueNotification(ctx context.Context, targetTaskID int64, event string, data []byte) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return wrapStoreErr("enqueue notification: begin", err)
	}
	defer tx.Rollback(ctx)

	var state TaskState
	err = tx.QueryRow(ctx, `SELECT state FROM durable.task WHERE id = $1 FOR NO KEY UPDATE`, targetTaskID).Scan(&state)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return durableerr.Wrap(durableerr.ErrNotFound, "task %d", targetTaskID)
		}
		return wrapStoreErr("enqueue notification: lock task", err)
	}

	switch state {
	case TaskComplete, TaskFailed:
		return durableerr.Wrap(durableerr.ErrTaskDead, "task %d", targetTaskID)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO durable.notification (task_id, event, data) VALUES ($1, $2, $3)
	`, targetTaskID, event, data); err != nil {
		return wrapStoreErr("enqueue notification: insert", err)
	}

	if state == TaskSuspended {
		if _, err := tx.Exec(ctx, `
			UPDATE durable.task SET state = 'active', running_on = NULL, wakeup_at = NULL
			WHERE id = $1
		`, targetTaskID); err != nil {
			return wrapStoreErr("enqueue notification: rearm", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return wrapStoreErr("enqueue notification: commit", err)
	}
	return nil
}

// FetchNextNotification dequeues the oldest queued notification for a
// task, FIFO by insertion order. ok is false if none is queued.
func (s *Store) FetchNextNotification(ctx context.Context, taskID int64) (n Notification, ok bool, err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Notification{}, false, wrapStoreErr("fetch notification: begin", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		SELECT id, task_id, created_at, event, data FROM durable.notification
		WHERE task_id = $1
		ORDER BY id ASC
		LIMIT 1
		FOR NO KEY UPDATE SKIP LOCKED
	`, taskID).Scan(&n.ID, &n.TaskID, &n.CreatedAt, &n.Event, &n.Data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Notification{}, false, nil
		}
		return Notification{}, false, wrapStoreErr("fetch notification: select", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM durable.notification WHERE id = $1`, n.ID); err != nil {
		return Notification{}, false, wrapStoreErr("fetch notification: delete", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Notification{}, false, wrapStoreErr("fetch notification: commit", err)
	}
	return n, true, nil
}
