package auth

import (
	"github.com/google/uuid"

	"github.com/jw6ventures/clinicgrid/internal/store"
)

func CanViewSchedule(s *Staff) bool {
	return s != nil && s.Role.Valid()
}

// CanEditAppointment lets front desk and admins edit anything; practitioners
// only their own bookings.
func CanEditAppointment(s *Staff, appt *store.Appointment) bool {
	if s == nil || appt == nil {
		return false
	}
	switch s.Role {
	case RoleAdmin, RoleReceptionist:
		return true
	case RolePractitioner:
		return s.PractitionerID != nil && *s.PractitionerID == appt.PractitionerID
	}
	return false
}

func CanViewPatient(s *Staff) bool {
	return s != nil && s.Role.Valid()
}

func CanEditPatient(s *Staff) bool {
	return s != nil && (s.Role == RoleAdmin || s.Role == RoleReceptionist)
}

func CanViewRevenue(s *Staff) bool {
	return s != nil && s.Role == RoleAdmin
}

// CanManageAvailability covers exceptions. Practitioners may block out their
// own time; clinic-wide closures need the front desk or an admin.
func CanManageAvailability(s *Staff, practitionerID *uuid.UUID) bool {
	if s == nil {
		return false
	}
	switch s.Role {
	case RoleAdmin, RoleReceptionist:
		return true
	case RolePractitioner:
		return practitionerID != nil && s.PractitionerID != nil && *practitionerID == *s.PractitionerID
	}
	return false
}
