package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/kosarica/durable/internal/durableerr"
)

// RegisterWorker inserts a new worker row and returns its id.
func (s *Store) RegisterWorker(ctx context.Context) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO durable.worker (started_at, heartbeat_at)
		VALUES (now(), now())
		RETURNING id
	`).Scan(&id)
	if err != nil {
		return 0, wrapStoreErr("register worker", err)
	}
	return id, nil
}

// Heartbeat refreshes heartbeat_at for workerID. Returns ErrNotFound if the
// row was already deleted — the caller must treat that as fatal
// (durableerr.ErrHeartbeatLost).
func (s *Store) Heartbeat(ctx context.Context, workerID int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE durable.worker SET heartbeat_at = now() WHERE id = $1
	`, workerID)
	if err != nil {
		return wrapStoreErr("heartbeat", err)
	}
	if tag.RowsAffected() == 0 {
		return durableerr.Wrap(durableerr.ErrNotFound, "worker %d", workerID)
	}
	return nil
}

// SweepDeadWorkers deletes workers whose heartbeat is older than
// now-threshold. Each delete triggers durable:worker and, via
// ON DELETE SET NULL on task.running_on, releases any tasks they were
// running. Safe to call from every worker (idempotent).
func (s *Store) SweepDeadWorkers(ctx context.Context, threshold time.Duration) (int64, error) {
	cutoff := time.Now().Add(-threshold)
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM durable.worker WHERE heartbeat_at < $1
	`, cutoff)
	if err != nil {
		return 0, wrapStoreErr("sweep dead workers", err)
	}
	return tag.RowsAffected(), nil
}

// FindLeader returns the smallest id among workers whose heartbeat is
// fresher than now-threshold. Returns ErrNotFound if no live worker exists
// (e.g. a race right after this worker's own row was swept).
func (s *Store) FindLeader(ctx context.Context, threshold time.Duration) (int64, error) {
	cutoff := time.Now().Add(-threshold)
	var id int64
	err := s.pool.QueryRow(ctx, `
		SELECT id FROM durable.worker
		WHERE heartbeat_at >= $1
		ORDER BY id ASC
		LIMIT 1
	`, cutoff).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, durableerr.Wrap(durableerr.ErrNotFound, "no live worker")
		}
		return 0, wrapStoreErr("find leader", err)
	}
	return id, nil
}

// CountWorkers returns the current number of worker rows, live or not yet
// swept, used to size the liveness sweep interval (spec.md §4.3.2).
func (s *Store) CountWorkers(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM durable.worker`).Scan(&n)
	if err != nil {
		return 0, wrapStoreErr("count workers", err)
	}
	return n, nil
}

// DeleteWorker removes this worker's own row, used during graceful
// shutdown once all loops and executors have stopped.
func (s *Store) DeleteWorker(ctx context.Context, workerID int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM durable.worker WHERE id = $1`, workerID)
	if err != nil {
		return wrapStoreErr("delete worker", err)
	}
	return nil
}

// wrapStoreErr distinguishes connection/timeout failures (ErrStoreUnavailable)
// from other query errors, per spec.md §7's propagation policy.
func wrapStoreErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if isTransient(err) {
		return durableerr.Wrap(durableerr.ErrStoreUnavailable, "%s", op)
	}
	return fmt.Errorf("store: %s: %w", op, err)
}

func isTransient(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		// Connection exceptions / insufficient resources per SQLSTATE class
		// 08/53 are transient; anything else is a real query error.
		switch pgErr.SQLState()[:2] {
		case "08", "53":
			return true
		}
		return false
	}
	// Anything that isn't a structured Postgres error (dial failure, context
	// deadline, pool acquire timeout) is treated as transient.
	return !errors.Is(err, pgx.ErrNoRows)
}
