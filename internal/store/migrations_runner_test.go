package store

import (
	"context"
	"errors"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
)

var migrationFiles = []struct {
	name   string
	marker string
}{
	{"001_init.sql", "-- Initial schema for clinicgrid"},
	{"002_receipts.sql", "-- Receipts for the revenue dashboard"},
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func expectApply(mock pgxmock.PgxPoolIface, name, marker string) {
	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(migrationLockKey).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("FROM schema_migrations WHERE version").WithArgs(name).WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(marker).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("INSERT INTO schema_migrations").WithArgs(name).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
}

func expectApplied(mock pgxmock.PgxPoolIface, name string, applied bool) {
	mock.ExpectQuery("FROM schema_migrations WHERE version").WithArgs(name).WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(applied))
}

func TestApplyMigrationsEmptyDatabase(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery("table_name='schema_migrations'").WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("COUNT\\(\\*\\) FROM information_schema.tables").WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	for _, m := range migrationFiles {
		expectApplied(mock, m.name, false)
		expectApply(mock, m.name, m.marker)
	}

	if err := ApplyMigrations(context.Background(), mock); err != nil {
		t.Fatalf("expected migrations to apply, got error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApplyMigrationsPopulatedWithoutTracking(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery("table_name='schema_migrations'").WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("COUNT\\(\\*\\) FROM information_schema.tables").WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("INSERT INTO schema_migrations").WithArgs("001_init.sql").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	expectApplied(mock, "001_init.sql", true)
	expectApplied(mock, "002_receipts.sql", false)
	expectApply(mock, "002_receipts.sql", migrationFiles[1].marker)

	if err := ApplyMigrations(context.Background(), mock); err != nil {
		t.Fatalf("expected migrations to apply without replaying init, got error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApplyMigrationsAllAlreadyApplied(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery("table_name='schema_migrations'").WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	for _, m := range migrationFiles {
		expectApplied(mock, m.name, true)
	}

	if err := ApplyMigrations(context.Background(), mock); err != nil {
		t.Fatalf("expected no-op migrations, got error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApplyMigrationsSkipsWhenAppliedConcurrently(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery("table_name='schema_migrations'").WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	expectApplied(mock, "001_init.sql", true)
	expectApplied(mock, "002_receipts.sql", false)
	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(migrationLockKey).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	expectApplied(mock, "002_receipts.sql", true)
	mock.ExpectCommit()

	if err := ApplyMigrations(context.Background(), mock); err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApplyMigrationsRollsBackOnFailure(t *testing.T) {
	mock := newMock(t)
	boom := errors.New("syntax error")

	mock.ExpectQuery("table_name='schema_migrations'").WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	expectApplied(mock, "001_init.sql", false)
	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(migrationLockKey).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	expectApplied(mock, "001_init.sql", false)
	mock.ExpectExec(migrationFiles[0].marker).WillReturnError(boom)
	mock.ExpectRollback()

	err := ApplyMigrations(context.Background(), mock)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped migration error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPendingMigrations(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery("table_name='schema_migrations'").WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	expectApplied(mock, "001_init.sql", true)
	expectApplied(mock, "002_receipts.sql", false)

	pending, err := PendingMigrations(context.Background(), mock)
	if err != nil {
		t.Fatalf("PendingMigrations returned error: %v", err)
	}
	if len(pending) != 1 || pending[0] != "002_receipts.sql" {
		t.Fatalf("unexpected pending list %v", pending)
	}
}
