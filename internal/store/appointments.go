package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const appointmentColumns = `id, patient_id, practitioner_id, title, starts_at, ends_at, status, location, notes, created_at, updated_at`

type appointmentRepo struct {
	db DB
}

func scanAppointment(row rowScanner) (Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.PractitionerID, &a.Title, &a.Start, &a.End, &a.Status, &a.Location, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *appointmentRepo) Create(ctx context.Context, a Appointment) (*Appointment, error) {
	defer observeDB(ctx, "appointments.create")()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = StatusBooked
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin create appointment: %w", err)
	}
	defer rollback(ctx, tx)

	if err := lockPractitioner(ctx, tx, a.PractitionerID); err != nil {
		return nil, err
	}
	if a.Status != StatusCancelled {
		if err := checkOverlap(ctx, tx, a); err != nil {
			return nil, err
		}
	}

	const q = `INSERT INTO appointments (id, patient_id, practitioner_id, title, starts_at, ends_at, status, location, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + appointmentColumns
	created, err := scanAppointment(tx.QueryRow(ctx, q, a.ID, a.PatientID, a.PractitionerID, a.Title, a.Start, a.End, a.Status, a.Location, a.Notes))
	if err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit appointment: %w", err)
	}
	return &created, nil
}

func (r *appointmentRepo) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	defer observeDB(ctx, "appointments.get")()
	a, err := scanAppointment(r.db.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment %s: %w", id, err)
	}
	return &a, nil
}

func (r *appointmentRepo) Update(ctx context.Context, a Appointment) (*Appointment, error) {
	defer observeDB(ctx, "appointments.update")()
	if a.Status == "" {
		a.Status = StatusBooked
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin update appointment: %w", err)
	}
	defer rollback(ctx, tx)

	if err := lockPractitioner(ctx, tx, a.PractitionerID); err != nil {
		return nil, err
	}
	if a.Status != StatusCancelled {
		if err := checkOverlap(ctx, tx, a); err != nil {
			return nil, err
		}
	}

	const q = `UPDATE appointments SET patient_id=$2, practitioner_id=$3, title=$4, starts_at=$5, ends_at=$6,
status=$7, location=$8, notes=$9, updated_at=NOW()
WHERE id=$1
RETURNING ` + appointmentColumns
	updated, err := scanAppointment(tx.QueryRow(ctx, q, a.ID, a.PatientID, a.PractitionerID, a.Title, a.Start, a.End, a.Status, a.Location, a.Notes))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update appointment %s: %w", a.ID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit appointment: %w", err)
	}
	return &updated, nil
}

func (r *appointmentRepo) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	defer observeDB(ctx, "appointments.cancel")()
	const q = `UPDATE appointments SET status='cancelled', updated_at=NOW() WHERE id=$1 RETURNING ` + appointmentColumns
	a, err := scanAppointment(r.db.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cancel appointment %s: %w", id, err)
	}
	return &a, nil
}

// ListRange returns appointments intersecting [from, to), cancelled ones included.
func (r *appointmentRepo) ListRange(ctx context.Context, from, to time.Time, practitionerID *uuid.UUID) ([]Appointment, error) {
	defer observeDB(ctx, "appointments.list_range")()
	const q = `SELECT ` + appointmentColumns + ` FROM appointments
WHERE starts_at < $2 AND ends_at > $1 AND ($3::uuid IS NULL OR practitioner_id = $3)
ORDER BY starts_at, id`
	rows, err := r.db.Query(ctx, q, from, to, practitionerID)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	out, err := collect(rows, scanAppointment)
	if err != nil {
		return nil, fmt.Errorf("scan appointments: %w", err)
	}
	return out, nil
}

func (r *appointmentRepo) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	defer observeDB(ctx, "appointments.list_for_patient")()
	rows, err := r.db.Query(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE patient_id=$1 ORDER BY starts_at DESC, id`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list patient appointments: %w", err)
	}
	out, err := collect(rows, scanAppointment)
	if err != nil {
		return nil, fmt.Errorf("scan appointments: %w", err)
	}
	return out, nil
}

// lockPractitioner serialises bookings per practitioner for the rest of tx.
func lockPractitioner(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	var one int
	err := tx.QueryRow(ctx, `SELECT 1 FROM practitioners WHERE id=$1 FOR UPDATE`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock practitioner %s: %w", id, err)
	}
	return nil
}

func checkOverlap(ctx context.Context, tx pgx.Tx, a Appointment) error {
	const q = `SELECT EXISTS (
	SELECT 1 FROM appointments
	WHERE practitioner_id=$1 AND status <> 'cancelled' AND id <> $2
	AND starts_at < $4 AND ends_at > $3
)`
	var exists bool
	if err := tx.QueryRow(ctx, q, a.PractitionerID, a.ID, a.Start, a.End).Scan(&exists); err != nil {
		return fmt.Errorf("check appointment overlap: %w", err)
	}
	if exists {
		return ErrConflict
	}
	return nil
}
