package store

import (
	"time"

	"github.com/google/uuid"
)

// Practitioner is a staff member whose schedule forms one column of the day view.
type Practitioner struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// Patient is a clinic patient. LineUserID links the LIFF self-service app.
type Patient struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	NameKana   string     `json:"nameKana"`
	Phone      string     `json:"phone"`
	Email      string     `json:"email"`
	BirthDate  *time.Time `json:"birthDate,omitempty"`
	LineUserID *string    `json:"lineUserId,omitempty"`
	Notes      string     `json:"notes"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

type AppointmentStatus string

const (
	StatusBooked    AppointmentStatus = "booked"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusNoShow    AppointmentStatus = "no_show"
)

// Valid reports whether s is a known status.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusBooked, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Appointment books a patient with a practitioner for [Start, End).
type Appointment struct {
	ID             uuid.UUID         `json:"id"`
	PatientID      uuid.UUID         `json:"patientId"`
	PractitionerID uuid.UUID         `json:"practitionerId"`
	Title          string            `json:"title"`
	Start          time.Time         `json:"start"`
	End            time.Time         `json:"end"`
	Status         AppointmentStatus `json:"status"`
	Location       string            `json:"location"`
	Notes          string            `json:"notes"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// AvailabilityException closes a practitioner (or the whole clinic when
// PractitionerID is nil) for [Start, End).
type AvailabilityException struct {
	ID             uuid.UUID  `json:"id"`
	PractitionerID *uuid.UUID `json:"practitionerId,omitempty"`
	Start          time.Time  `json:"start"`
	End            time.Time  `json:"end"`
	Reason         string     `json:"reason"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// AvailabilityRule is a recurring working window. RRule holds the RFC 5545
// recurrence (e.g. "FREQ=WEEKLY;BYDAY=MO,WE,FR"); StartTime and EndTime are
// local wall-clock times in HH:MM.
type AvailabilityRule struct {
	ID             uuid.UUID `json:"id"`
	PractitionerID uuid.UUID `json:"practitionerId"`
	RRule          string    `json:"rrule"`
	StartTime      string    `json:"startTime"`
	EndTime        string    `json:"endTime"`
	ValidFrom      time.Time `json:"validFrom"`
	CreatedAt      time.Time `json:"createdAt"`
}

// AvailabilityBlock is one materialised occurrence of a rule.
type AvailabilityBlock struct {
	ID             uuid.UUID  `json:"id"`
	PractitionerID uuid.UUID  `json:"practitionerId"`
	RuleID         *uuid.UUID `json:"ruleId,omitempty"`
	Start          time.Time  `json:"start"`
	End            time.Time  `json:"end"`
}

// Receipt records a payment. Amounts are whole yen.
type Receipt struct {
	ID             uuid.UUID  `json:"id"`
	AppointmentID  *uuid.UUID `json:"appointmentId,omitempty"`
	PatientID      uuid.UUID  `json:"patientId"`
	PractitionerID uuid.UUID  `json:"practitionerId"`
	AmountYen      int64      `json:"amountYen"`
	Method         string     `json:"method"`
	IssuedAt       time.Time  `json:"issuedAt"`
	CreatedAt      time.Time  `json:"createdAt"`
}
