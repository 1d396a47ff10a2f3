package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/kosarica/durable/internal/durableerr"
)

// RegisterWasm inserts a content-addressed binary, deduplicating by hash.
// If a row with the same hash already exists, its id is returned and
// last_used is bumped rather than inserting a duplicate.
func (s *Store) RegisterWasm(ctx context.Context, hash [32]byte, binary []byte, name string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO durable.wasm (hash, binary, name, last_used)
		VALUES ($1, $2, NULLIF($3, ''), now())
		ON CONFLICT (hash) DO UPDATE SET last_used = now()
		RETURNING id
	`, hash[:], binary, name).Scan(&id)
	if err != nil {
		return 0, wrapStoreErr("register wasm", err)
	}
	return id, nil
}

// GetWasm fetches a Wasm row by id and bumps last_used, matching the "touch
// on access" contract that keeps it out of garbage collection while
// referenced by an active task.
func (s *Store) GetWasm(ctx context.Context, id int64) (Wasm, error) {
	var w Wasm
	var hash []byte
	var name *string
	err := s.pool.QueryRow(ctx, `
		UPDATE durable.wasm SET last_used = now()
		WHERE id = $1
		RETURNING id, hash, binary, name, last_used
	`, id).Scan(&w.ID, &hash, &w.Binary, &name, &w.LastUsed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wasm{}, durableerr.Wrap(durableerr.ErrNotFound, "wasm %d", id)
		}
		return Wasm{}, wrapStoreErr("get wasm", err)
	}
	copy(w.Hash[:], hash)
	if name != nil {
		w.Name = *name
	}
	return w, nil
}

// GarbageCollectWasm deletes Wasm rows unreferenced by any task and older
// than retention, per spec.md §3.
func (s *Store) GarbageCollectWasm(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	cutoff := now.Add(-retention)
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM durable.wasm w
		WHERE w.last_used < $1
		  AND NOT EXISTS (SELECT 1 FROM durable.task t WHERE t.wasm = w.id)
	`, cutoff)
	if err != nil {
		return 0, wrapStoreErr("gc wasm", err)
	}
	return tag.RowsAffected(), nil
}
