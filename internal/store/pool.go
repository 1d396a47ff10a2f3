// Package store is the Task Store: the single abstraction over the
// relational backing store named in spec.md §4.1. Every operation is a
// method on *Store, each a single round trip (one pgx.Tx when the
// operation needs read-then-write atomicity).
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps a pgxpool.Pool with the durable-schema operations.
type Store struct {
	pool *pgxpool.Pool
}

// Config configures the underlying connection pool.
type Config struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Open parses cfg and establishes the pool, pinging once to fail fast on a
// bad connection string, the way database.Connect does in the teacher.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("store: parse pool config: %w", err)
	}

	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	return &Store{pool: pool}, nil
}

// FromPool wraps an already-constructed pool, used by tests that bring
// their own testcontainers-backed pool.
func FromPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool exposes the underlying pool for callers that need a raw connection,
// namely internal/host's database-kind transactions and
// internal/eventsource's dedicated LISTEN connection.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Stats exposes pool statistics for the admin HTTP surface.
func (s *Store) Stats() *pgxpool.Stat {
	return s.pool.Stat()
}
