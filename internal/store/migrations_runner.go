package store

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jw6ventures/clinicgrid/internal/migrations"
)

// migrationLockKey identifies the advisory lock held while a migration runs.
const migrationLockKey int64 = 0x636c696e6963

// Migrator is the subset of *pgxpool.Pool used by ApplyMigrations.
type Migrator interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// ApplyMigrations runs every embedded migration not yet recorded in
// schema_migrations, each in its own transaction under an advisory lock so
// concurrently starting instances apply a migration at most once. A database
// that already has tables but no tracking table is assumed to hold the
// initial schema.
func ApplyMigrations(ctx context.Context, db Migrator) error {
	names, err := listMigrationFiles()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return nil
	}

	hasTable, err := migrationTableExists(ctx, db)
	if err != nil {
		return err
	}
	if !hasTable {
		empty, err := databaseIsEmpty(ctx, db)
		if err != nil {
			return err
		}
		if err := ensureMigrationTable(ctx, db); err != nil {
			return err
		}
		if !empty {
			if err := recordMigration(ctx, db, names[0]); err != nil {
				return err
			}
		}
	}

	for _, name := range names {
		applied, err := migrationApplied(ctx, db, name)
		if err != nil {
			return err
		}
		if applied {
			continue
		}
		if err := applyMigration(ctx, db, name); err != nil {
			return err
		}
	}
	return nil
}

// PendingMigrations lists embedded migrations that have not been recorded.
func PendingMigrations(ctx context.Context, db Migrator) ([]string, error) {
	names, err := listMigrationFiles()
	if err != nil {
		return nil, err
	}
	hasTable, err := migrationTableExists(ctx, db)
	if err != nil {
		return nil, err
	}
	if !hasTable {
		return names, nil
	}
	var pending []string
	for _, name := range names {
		applied, err := migrationApplied(ctx, db, name)
		if err != nil {
			return nil, err
		}
		if !applied {
			pending = append(pending, name)
		}
	}
	return pending, nil
}

func listMigrationFiles() ([]string, error) {
	entries, err := fs.ReadDir(migrations.Files, ".")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func migrationTableExists(ctx context.Context, db Migrator) (bool, error) {
	const q = `SELECT EXISTS (
	SELECT 1 FROM information_schema.tables
	WHERE table_schema='public' AND table_name='schema_migrations'
)`
	var exists bool
	if err := db.QueryRow(ctx, q).Scan(&exists); err != nil {
		return false, fmt.Errorf("check migration table: %w", err)
	}
	return exists, nil
}

func databaseIsEmpty(ctx context.Context, db Migrator) (bool, error) {
	const q = `SELECT COUNT(*) FROM information_schema.tables
WHERE table_schema NOT IN ('pg_catalog', 'information_schema')`
	var count int
	if err := db.QueryRow(ctx, q).Scan(&count); err != nil {
		return false, fmt.Errorf("count tables: %w", err)
	}
	return count == 0, nil
}

func ensureMigrationTable(ctx context.Context, db Migrator) error {
	const q = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	if _, err := db.Exec(ctx, q); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	return nil
}

const (
	appliedQuery = `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version=$1)`
	recordQuery  = `INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT (version) DO NOTHING`
)

func migrationApplied(ctx context.Context, db Migrator, name string) (bool, error) {
	var exists bool
	if err := db.QueryRow(ctx, appliedQuery, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("check migration %s: %w", name, err)
	}
	return exists, nil
}

func recordMigration(ctx context.Context, db Migrator, name string) error {
	if _, err := db.Exec(ctx, recordQuery, name); err != nil {
		return fmt.Errorf("record migration %s: %w", name, err)
	}
	return nil
}

func applyMigration(ctx context.Context, db Migrator, name string) error {
	contents, err := migrations.Files.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", name, err)
	}

	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", name, err)
	}
	defer rollback(ctx, tx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockKey); err != nil {
		return fmt.Errorf("lock migration %s: %w", name, err)
	}
	// Another instance may have applied it while we waited for the lock.
	var applied bool
	if err := tx.QueryRow(ctx, appliedQuery, name).Scan(&applied); err != nil {
		return fmt.Errorf("recheck migration %s: %w", name, err)
	}
	if applied {
		return tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx, string(contents)); err != nil {
		return fmt.Errorf("apply migration %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, recordQuery, name); err != nil {
		return fmt.Errorf("record migration %s: %w", name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration %s: %w", name, err)
	}
	return nil
}
