// Package migrate applies the durable schema as an ordered sequence of
// embedded SQL migrations, tracked by a single version counter. Translated
// from original_source's durable-migrate crate (Migrator/Options/
// read_database_version) into a slice-of-structs + pgx.Tx loop: no
// third-party migration library is used (see DESIGN.md) since the spec's
// migration semantics are a single version counter with no per-step
// tooling beyond applying embedded SQL transactionally.
package migrate

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migration is one named, ordered SQL step.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Migrator holds the ordered set of migrations compiled into the binary.
type Migrator struct {
	migrations []Migration
}

// New loads the embedded migrations, sorted by version.
func New() (*Migrator, error) {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migrate: read embedded migrations: %w", err)
	}

	migrations := make([]Migration, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		version, name, err := parseFilename(e.Name())
		if err != nil {
			return nil, fmt.Errorf("migrate: %s: %w", e.Name(), err)
		}
		body, err := migrationFS.ReadFile("migrations/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("migrate: read %s: %w", e.Name(), err)
		}
		migrations = append(migrations, Migration{Version: version, Name: name, SQL: string(body)})
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return &Migrator{migrations: migrations}, nil
}

func parseFilename(name string) (int, string, error) {
	base := strings.TrimSuffix(name, ".sql")
	parts := strings.SplitN(base, "_", 2)
	if len(parts) != 2 {
		return 0, "", fmt.Errorf("expected <version>_<name>.sql, got %q", name)
	}
	version, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, "", fmt.Errorf("invalid version prefix %q: %w", parts[0], err)
	}
	return version, parts[1], nil
}

// Latest returns the highest embedded migration version.
func (m *Migrator) Latest() int {
	if len(m.migrations) == 0 {
		return 0
	}
	return m.migrations[len(m.migrations)-1].Version
}

// ReadVersion reports the schema version currently recorded in the
// database, or 0 if the tracking table does not exist yet.
func ReadVersion(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'durable' AND table_name = 'schema_version'
		)
	`).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("migrate: check schema_version table: %w", err)
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM durable.schema_version`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("migrate: read schema_version: %w", err)
	}
	return version, nil
}

// Migrate applies every migration newer than the recorded version, up to
// and including target (0 means "latest"). Each migration runs in its own
// transaction, matching durable-migrate's per-step transaction mode.
func (m *Migrator) Migrate(ctx context.Context, pool *pgxpool.Pool, target int, log zerolog.Logger) error {
	if target == 0 {
		target = m.Latest()
	}

	current, err := ReadVersion(ctx, pool)
	if err != nil {
		return err
	}
	if current >= target {
		log.Debug().Int("current", current).Int("target", target).Msg("schema already at or above target")
		return nil
	}

	for _, mig := range m.migrations {
		if mig.Version <= current || mig.Version > target {
			continue
		}
		if err := m.applyOne(ctx, pool, mig); err != nil {
			return fmt.Errorf("migrate: apply %04d_%s: %w", mig.Version, mig.Name, err)
		}
		log.Info().Int("version", mig.Version).Str("name", mig.Name).Msg("applied migration")
	}
	return nil
}

func (m *Migrator) applyOne(ctx context.Context, pool *pgxpool.Pool, mig Migration) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if mig.Version == 1 {
		// schema_version's own home schema does not exist until this
		// migration runs, so bootstrap it ahead of the migration body.
		if _, err := tx.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS durable`); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `CREATE TABLE IF NOT EXISTS durable.schema_version (version INT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL DEFAULT now())`); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, mig.SQL); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO durable.schema_version (version) VALUES ($1)`, mig.Version); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Validate returns an error if the database's recorded version does not
// match the latest embedded migration. Used when Config.Migrate is false:
// the worker refuses to start against a mismatched schema rather than
// silently running with stale DDL.
func Validate(ctx context.Context, pool *pgxpool.Pool, m *Migrator) error {
	current, err := ReadVersion(ctx, pool)
	if err != nil {
		return err
	}
	if current != m.Latest() {
		return fmt.Errorf("migrate: schema at version %d, binary expects %d (run with migrate=true or apply migrations out of band)", current, m.Latest())
	}
	return nil
}
