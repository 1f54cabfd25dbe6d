package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	exceptionColumns = `id, practitioner_id, starts_at, ends_at, reason, created_at`
	ruleColumns      = `id, practitioner_id, rrule, start_time, end_time, valid_from, created_at`
	blockColumns     = `id, practitioner_id, rule_id, starts_at, ends_at`
)

type exceptionRepo struct {
	db DB
}

func scanException(row rowScanner) (AvailabilityException, error) {
	var e AvailabilityException
	err := row.Scan(&e.ID, &e.PractitionerID, &e.Start, &e.End, &e.Reason, &e.CreatedAt)
	return e, err
}

func (r *exceptionRepo) Create(ctx context.Context, e AvailabilityException) (*AvailabilityException, error) {
	defer observeDB(ctx, "exceptions.create")()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	const q = `INSERT INTO availability_exceptions (id, practitioner_id, starts_at, ends_at, reason)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + exceptionColumns
	created, err := scanException(r.db.QueryRow(ctx, q, e.ID, e.PractitionerID, e.Start, e.End, e.Reason))
	if err != nil {
		return nil, fmt.Errorf("create availability exception: %w", err)
	}
	return &created, nil
}

func (r *exceptionRepo) GetByID(ctx context.Context, id uuid.UUID) (*AvailabilityException, error) {
	defer observeDB(ctx, "exceptions.get")()
	e, err := scanException(r.db.QueryRow(ctx, `SELECT `+exceptionColumns+` FROM availability_exceptions WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get availability exception %s: %w", id, err)
	}
	return &e, nil
}

// Delete removes the exception and returns it so callers can invalidate its days.
func (r *exceptionRepo) Delete(ctx context.Context, id uuid.UUID) (*AvailabilityException, error) {
	defer observeDB(ctx, "exceptions.delete")()
	deleted, err := scanException(r.db.QueryRow(ctx, `DELETE FROM availability_exceptions WHERE id=$1 RETURNING `+exceptionColumns, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delete availability exception %s: %w", id, err)
	}
	return &deleted, nil
}

// ListRange includes clinic-wide exceptions when filtering by practitioner.
func (r *exceptionRepo) ListRange(ctx context.Context, from, to time.Time, practitionerID *uuid.UUID) ([]AvailabilityException, error) {
	defer observeDB(ctx, "exceptions.list_range")()
	const q = `SELECT ` + exceptionColumns + ` FROM availability_exceptions
WHERE starts_at < $2 AND ends_at > $1
AND ($3::uuid IS NULL OR practitioner_id IS NULL OR practitioner_id = $3)
ORDER BY starts_at, id`
	rows, err := r.db.Query(ctx, q, from, to, practitionerID)
	if err != nil {
		return nil, fmt.Errorf("list availability exceptions: %w", err)
	}
	out, err := collect(rows, scanException)
	if err != nil {
		return nil, fmt.Errorf("scan availability exceptions: %w", err)
	}
	return out, nil
}

type ruleRepo struct {
	db DB
}

func scanRule(row rowScanner) (AvailabilityRule, error) {
	var rule AvailabilityRule
	err := row.Scan(&rule.ID, &rule.PractitionerID, &rule.RRule, &rule.StartTime, &rule.EndTime, &rule.ValidFrom, &rule.CreatedAt)
	return rule, err
}

func (r *ruleRepo) List(ctx context.Context) ([]AvailabilityRule, error) {
	defer observeDB(ctx, "rules.list")()
	rows, err := r.db.Query(ctx, `SELECT `+ruleColumns+` FROM availability_rules ORDER BY practitioner_id, created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list availability rules: %w", err)
	}
	out, err := collect(rows, scanRule)
	if err != nil {
		return nil, fmt.Errorf("scan availability rules: %w", err)
	}
	return out, nil
}

func (r *ruleRepo) Create(ctx context.Context, rule AvailabilityRule) (*AvailabilityRule, error) {
	defer observeDB(ctx, "rules.create")()
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	const q = `INSERT INTO availability_rules (id, practitioner_id, rrule, start_time, end_time, valid_from)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + ruleColumns
	created, err := scanRule(r.db.QueryRow(ctx, q, rule.ID, rule.PractitionerID, rule.RRule, rule.StartTime, rule.EndTime, rule.ValidFrom))
	if err != nil {
		return nil, fmt.Errorf("create availability rule: %w", err)
	}
	return &created, nil
}

type blockRepo struct {
	db DB
}

func scanBlock(row rowScanner) (AvailabilityBlock, error) {
	var b AvailabilityBlock
	err := row.Scan(&b.ID, &b.PractitionerID, &b.RuleID, &b.Start, &b.End)
	return b, err
}

// ReplaceRange swaps every block of the practitioner starting in [from, to)
// for blocks in a single transaction.
func (r *blockRepo) ReplaceRange(ctx context.Context, practitionerID uuid.UUID, from, to time.Time, blocks []AvailabilityBlock) error {
	defer observeDB(ctx, "blocks.replace_range")()
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin replace blocks: %w", err)
	}
	defer rollback(ctx, tx)

	const del = `DELETE FROM availability_blocks WHERE practitioner_id=$1 AND starts_at >= $2 AND starts_at < $3`
	if _, err := tx.Exec(ctx, del, practitionerID, from, to); err != nil {
		return fmt.Errorf("clear availability blocks: %w", err)
	}

	const ins = `INSERT INTO availability_blocks (id, practitioner_id, rule_id, starts_at, ends_at) VALUES ($1, $2, $3, $4, $5)`
	for _, b := range blocks {
		if b.ID == uuid.Nil {
			b.ID = uuid.New()
		}
		if _, err := tx.Exec(ctx, ins, b.ID, practitionerID, b.RuleID, b.Start, b.End); err != nil {
			return fmt.Errorf("insert availability block: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit availability blocks: %w", err)
	}
	return nil
}

func (r *blockRepo) ListRange(ctx context.Context, from, to time.Time, practitionerID *uuid.UUID) ([]AvailabilityBlock, error) {
	defer observeDB(ctx, "blocks.list_range")()
	const q = `SELECT ` + blockColumns + ` FROM availability_blocks
WHERE starts_at < $2 AND ends_at > $1 AND ($3::uuid IS NULL OR practitioner_id = $3)
ORDER BY starts_at, id`
	rows, err := r.db.Query(ctx, q, from, to, practitionerID)
	if err != nil {
		return nil, fmt.Errorf("list availability blocks: %w", err)
	}
	out, err := collect(rows, scanBlock)
	if err != nil {
		return nil, fmt.Errorf("scan availability blocks: %w", err)
	}
	return out, nil
}
