package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const receiptColumns = `id, appointment_id, patient_id, practitioner_id, amount_yen, method, issued_at, created_at`

type receiptRepo struct {
	db DB
}

func scanReceipt(row rowScanner) (Receipt, error) {
	var rc Receipt
	err := row.Scan(&rc.ID, &rc.AppointmentID, &rc.PatientID, &rc.PractitionerID, &rc.AmountYen, &rc.Method, &rc.IssuedAt, &rc.CreatedAt)
	return rc, err
}

func (r *receiptRepo) Create(ctx context.Context, rc Receipt) (*Receipt, error) {
	defer observeDB(ctx, "receipts.create")()
	if rc.ID == uuid.Nil {
		rc.ID = uuid.New()
	}
	const q = `INSERT INTO receipts (id, appointment_id, patient_id, practitioner_id, amount_yen, method, issued_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + receiptColumns
	created, err := scanReceipt(r.db.QueryRow(ctx, q, rc.ID, rc.AppointmentID, rc.PatientID, rc.PractitionerID, rc.AmountYen, rc.Method, rc.IssuedAt))
	if err != nil {
		return nil, fmt.Errorf("create receipt: %w", err)
	}
	return &created, nil
}

// ListRange returns receipts issued in [from, to).
func (r *receiptRepo) ListRange(ctx context.Context, from, to time.Time) ([]Receipt, error) {
	defer observeDB(ctx, "receipts.list_range")()
	const q = `SELECT ` + receiptColumns + ` FROM receipts WHERE issued_at >= $1 AND issued_at < $2 ORDER BY issued_at, id`
	rows, err := r.db.Query(ctx, q, from, to)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	out, err := collect(rows, scanReceipt)
	if err != nil {
		return nil, fmt.Errorf("scan receipts: %w", err)
	}
	return out, nil
}
