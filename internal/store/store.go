package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool the repositories use.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// Store aggregates repositories backed by PostgreSQL.
type Store struct {
	db DB

	Practitioners PractitionerRepository
	Patients      PatientRepository
	Appointments  AppointmentRepository
	Exceptions    AvailabilityExceptionRepository
	Rules         AvailabilityRuleRepository
	Blocks        AvailabilityBlockRepository
	Receipts      ReceiptRepository
}

// New wires concrete repository implementations with shared connection pool.
func New(db DB) *Store {
	return &Store{
		db:            db,
		Practitioners: &practitionerRepo{db: db},
		Patients:      &patientRepo{db: db},
		Appointments:  &appointmentRepo{db: db},
		Exceptions:    &exceptionRepo{db: db},
		Rules:         &ruleRepo{db: db},
		Blocks:        &blockRepo{db: db},
		Receipts:      &receiptRepo{db: db},
	}
}

// HealthCheck verifies that the underlying database is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	defer observeDB(ctx, "db.healthcheck")()
	return s.db.Ping(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// collect drains rows through scan, closing them on return.
func collect[T any](rows pgx.Rows, scan func(rowScanner) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// rollback is deferred after BeginTx; it is a no-op once the tx has committed.
func rollback(ctx context.Context, tx pgx.Tx) {
	_ = tx.Rollback(ctx)
}
