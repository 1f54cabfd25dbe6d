package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const patientColumns = `id, name, name_kana, phone, email, birth_date, line_user_id, notes, created_at, updated_at`

const maxPatientPage = 100

type patientRepo struct {
	db DB
}

func scanPatient(row rowScanner) (Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.NameKana, &p.Phone, &p.Email, &p.BirthDate, &p.LineUserID, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *patientRepo) Create(ctx context.Context, p Patient) (*Patient, error) {
	defer observeDB(ctx, "patients.create")()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	const q = `INSERT INTO patients (id, name, name_kana, phone, email, birth_date, line_user_id, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + patientColumns
	created, err := scanPatient(r.db.QueryRow(ctx, q, p.ID, p.Name, p.NameKana, p.Phone, p.Email, p.BirthDate, p.LineUserID, p.Notes))
	if err != nil {
		return nil, fmt.Errorf("create patient: %w", err)
	}
	return &created, nil
}

func (r *patientRepo) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	defer observeDB(ctx, "patients.get")()
	return r.getOne(ctx, `SELECT `+patientColumns+` FROM patients WHERE id=$1`, id)
}

func (r *patientRepo) GetByLineUserID(ctx context.Context, lineUserID string) (*Patient, error) {
	defer observeDB(ctx, "patients.get_by_line_user")()
	if lineUserID == "" {
		return nil, ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+patientColumns+` FROM patients WHERE line_user_id=$1`, lineUserID)
}

func (r *patientRepo) getOne(ctx context.Context, q string, arg any) (*Patient, error) {
	p, err := scanPatient(r.db.QueryRow(ctx, q, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get patient: %w", err)
	}
	return &p, nil
}

// Search matches name, kana or phone by substring. An empty query lists
// patients by name.
func (r *patientRepo) Search(ctx context.Context, query string, limit, offset int) ([]Patient, error) {
	defer observeDB(ctx, "patients.search")()
	if limit <= 0 || limit > maxPatientPage {
		limit = maxPatientPage
	}
	if offset < 0 {
		offset = 0
	}
	pattern := "%" + escapeLike(strings.TrimSpace(query)) + "%"
	const q = `SELECT ` + patientColumns + ` FROM patients
WHERE name ILIKE $1 OR name_kana ILIKE $1 OR phone LIKE $1
ORDER BY name, id LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, q, pattern, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("search patients: %w", err)
	}
	out, err := collect(rows, scanPatient)
	if err != nil {
		return nil, fmt.Errorf("scan patients: %w", err)
	}
	return out, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
