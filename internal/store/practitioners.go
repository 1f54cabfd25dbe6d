package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const practitionerColumns = `id, name, color, active, created_at`

type practitionerRepo struct {
	db DB
}

func scanPractitioner(row rowScanner) (Practitioner, error) {
	var p Practitioner
	err := row.Scan(&p.ID, &p.Name, &p.Color, &p.Active, &p.CreatedAt)
	return p, err
}

func (r *practitionerRepo) List(ctx context.Context) ([]Practitioner, error) {
	defer observeDB(ctx, "practitioners.list")()
	rows, err := r.db.Query(ctx, `SELECT `+practitionerColumns+` FROM practitioners WHERE active ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list practitioners: %w", err)
	}
	out, err := collect(rows, scanPractitioner)
	if err != nil {
		return nil, fmt.Errorf("scan practitioners: %w", err)
	}
	return out, nil
}

func (r *practitionerRepo) GetByID(ctx context.Context, id uuid.UUID) (*Practitioner, error) {
	defer observeDB(ctx, "practitioners.get")()
	p, err := scanPractitioner(r.db.QueryRow(ctx, `SELECT `+practitionerColumns+` FROM practitioners WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get practitioner %s: %w", id, err)
	}
	return &p, nil
}

func (r *practitionerRepo) Create(ctx context.Context, p Practitioner) (*Practitioner, error) {
	defer observeDB(ctx, "practitioners.create")()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	const q = `INSERT INTO practitioners (id, name, color, active) VALUES ($1, $2, $3, $4)
RETURNING ` + practitionerColumns
	created, err := scanPractitioner(r.db.QueryRow(ctx, q, p.ID, p.Name, p.Color, p.Active))
	if err != nil {
		return nil, fmt.Errorf("create practitioner: %w", err)
	}
	return &created, nil
}
