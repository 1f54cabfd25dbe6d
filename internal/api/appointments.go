package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jw6ventures/clinicgrid/internal/auth"
	httperrors "github.com/jw6ventures/clinicgrid/internal/http/errors"
	"github.com/jw6ventures/clinicgrid/internal/store"
)

const maxTitleLen = 200

type appointmentInput struct {
	PatientID      uuid.UUID               `json:"patientId"`
	PractitionerID uuid.UUID               `json:"practitionerId"`
	Title          string                  `json:"title"`
	Start          time.Time               `json:"start"`
	End            time.Time               `json:"end"`
	Status         store.AppointmentStatus `json:"status"`
	Location       string                  `json:"location"`
	Notes          string                  `json:"notes"`
}

func (in appointmentInput) validate() error {
	switch {
	case in.PatientID == uuid.Nil:
		return invalidf("patientId is required")
	case in.PractitionerID == uuid.Nil:
		return invalidf("practitionerId is required")
	case in.Start.IsZero() || in.End.IsZero():
		return invalidf("start and end are required")
	case !in.End.After(in.Start):
		return invalidf("end must be after start")
	case len(in.Title) > maxTitleLen:
		return invalidf("title longer than %d characters", maxTitleLen)
	case in.Status != "" && !in.Status.Valid():
		return invalidf("unknown status %q", in.Status)
	}
	return nil
}

// apply copies the input over a, keeping identity and timestamps.
func (in appointmentInput) apply(a store.Appointment) store.Appointment {
	a.PatientID = in.PatientID
	a.PractitionerID = in.PractitionerID
	a.Title = strings.TrimSpace(in.Title)
	a.Start = in.Start
	a.End = in.End
	a.Location = strings.TrimSpace(in.Location)
	a.Notes = in.Notes
	if in.Status != "" {
		a.Status = in.Status
	}
	if a.Status == "" {
		a.Status = store.StatusBooked
	}
	return a
}

// ListAppointments returns bookings overlapping ?from=..?to= (inclusive dates).
func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	staff, _ := auth.StaffFromContext(r.Context())
	if !auth.CanViewSchedule(staff) {
		httperrors.Forbidden(w, r)
		return
	}
	from, to, err := h.dateRange(r)
	if err != nil {
		h.fail(w, r, err, "appointments")
		return
	}
	pid, err := optionalUUID(r, "practitioner")
	if err != nil {
		h.fail(w, r, err, "appointments")
		return
	}
	appts, err := h.appointments.ListRange(r.Context(), from, to, pid)
	if err != nil {
		h.fail(w, r, err, "appointments")
		return
	}
	if appts == nil {
		appts = []store.Appointment{}
	}
	writeJSON(w, http.StatusOK, appts)
}

func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	staff, _ := auth.StaffFromContext(r.Context())
	if !auth.CanViewSchedule(staff) {
		httperrors.Forbidden(w, r)
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err, "appointment")
		return
	}
	a, err := h.appointments.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "appointment")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	staff, _ := auth.StaffFromContext(r.Context())
	var in appointmentInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err, "appointment")
		return
	}
	if err := in.validate(); err != nil {
		h.fail(w, r, err, "appointment")
		return
	}
	appt := in.apply(store.Appointment{})
	if !auth.CanEditAppointment(staff, &appt) {
		httperrors.Forbidden(w, r)
		return
	}

	created, err := h.appointments.Create(r.Context(), appt)
	if err != nil {
		h.fail(w, r, err, "practitioner")
		return
	}
	h.invalidate(r, created.Start, created.End)
	h.log(r).Info().Str("appointment_id", created.ID.String()).Str("practitioner_id", created.PractitionerID.String()).Msg("appointment created")
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) UpdateAppointment(w http.ResponseWriter, r *http.Request) {
	staff, _ := auth.StaffFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err, "appointment")
		return
	}
	var in appointmentInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err, "appointment")
		return
	}
	if err := in.validate(); err != nil {
		h.fail(w, r, err, "appointment")
		return
	}

	existing, err := h.appointments.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "appointment")
		return
	}
	next := in.apply(*existing)
	if !auth.CanEditAppointment(staff, existing) || !auth.CanEditAppointment(staff, &next) {
		httperrors.Forbidden(w, r)
		return
	}

	updated, err := h.appointments.Update(r.Context(), next)
	if err != nil {
		h.fail(w, r, err, "appointment")
		return
	}
	h.invalidate(r, existing.Start, existing.End)
	h.invalidate(r, updated.Start, updated.End)
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	staff, _ := auth.StaffFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err, "appointment")
		return
	}
	existing, err := h.appointments.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "appointment")
		return
	}
	if !auth.CanEditAppointment(staff, existing) {
		httperrors.Forbidden(w, r)
		return
	}
	cancelled, err := h.appointments.Cancel(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "appointment")
		return
	}
	h.invalidate(r, cancelled.Start, cancelled.End)
	h.log(r).Info().Str("appointment_id", id.String()).Msg("appointment cancelled")
	writeJSON(w, http.StatusOK, cancelled)
}
