package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PractitionerRepository manages clinic staff shown as schedule columns.
type PractitionerRepository interface {
	List(ctx context.Context) ([]Practitioner, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Practitioner, error)
	Create(ctx context.Context, p Practitioner) (*Practitioner, error)
}

// PatientRepository handles patient records.
type PatientRepository interface {
	Create(ctx context.Context, p Patient) (*Patient, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Search(ctx context.Context, query string, limit, offset int) ([]Patient, error)
	GetByLineUserID(ctx context.Context, lineUserID string) (*Patient, error)
}

// AppointmentRepository handles bookings. Create and Update return
// ErrConflict when the practitioner already has a live appointment in the range.
type AppointmentRepository interface {
	Create(ctx context.Context, a Appointment) (*Appointment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a Appointment) (*Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListRange(ctx context.Context, from, to time.Time, practitionerID *uuid.UUID) ([]Appointment, error)
	ListForPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error)
}

// AvailabilityExceptionRepository handles closures and blocked time.
type AvailabilityExceptionRepository interface {
	Create(ctx context.Context, e AvailabilityException) (*AvailabilityException, error)
	GetByID(ctx context.Context, id uuid.UUID) (*AvailabilityException, error)
	Delete(ctx context.Context, id uuid.UUID) (*AvailabilityException, error)
	ListRange(ctx context.Context, from, to time.Time, practitionerID *uuid.UUID) ([]AvailabilityException, error)
}

// AvailabilityRuleRepository stores recurring working windows.
type AvailabilityRuleRepository interface {
	List(ctx context.Context) ([]AvailabilityRule, error)
	Create(ctx context.Context, r AvailabilityRule) (*AvailabilityRule, error)
}

// AvailabilityBlockRepository stores materialised rule occurrences.
type AvailabilityBlockRepository interface {
	ReplaceRange(ctx context.Context, practitionerID uuid.UUID, from, to time.Time, blocks []AvailabilityBlock) error
	ListRange(ctx context.Context, from, to time.Time, practitionerID *uuid.UUID) ([]AvailabilityBlock, error)
}

// ReceiptRepository records payments.
type ReceiptRepository interface {
	Create(ctx context.Context, r Receipt) (*Receipt, error)
	ListRange(ctx context.Context, from, to time.Time) ([]Receipt, error)
}
