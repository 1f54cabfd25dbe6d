package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/jw6ventures/clinicgrid/internal/store"
)

type liffAppointment struct {
	ID       string                  `json:"id"`
	Title    string                  `json:"title"`
	Start    string                  `json:"start"`
	End      string                  `json:"end"`
	Status   store.AppointmentStatus `json:"status"`
	Location string                  `json:"location"`
}

// LIFFAppointments lists the caller's upcoming, non-cancelled bookings.
// Staff notes are never exposed here.
func (h *Handler) LIFFAppointments(w http.ResponseWriter, r *http.Request) {
	lineUserID := strings.TrimSpace(r.Header.Get(lineUserIDHdr))
	if lineUserID == "" {
		h.fail(w, r, invalidf("missing %s header", lineUserIDHdr), "patient")
		return
	}
	patient, err := h.patients.GetByLineUserID(r.Context(), lineUserID)
	if err != nil {
		h.fail(w, r, err, "patient")
		return
	}
	appts, err := h.appointments.ListForPatient(r.Context(), patient.ID)
	if err != nil {
		h.fail(w, r, err, "appointments")
		return
	}

	now := h.now()
	today, _ := h.cal.DayBounds(now)
	loc := today.Location()
	out := []liffAppointment{}
	// ListForPatient is newest first; walk backwards for chronological order.
	for i := len(appts) - 1; i >= 0; i-- {
		a := appts[i]
		if a.Status == store.StatusCancelled || !a.End.After(now) {
			continue
		}
		out = append(out, liffAppointment{
			ID:       a.ID.String(),
			Title:    a.Title,
			Start:    a.Start.In(loc).Format(time.RFC3339),
			End:      a.End.In(loc).Format(time.RFC3339),
			Status:   a.Status,
			Location: a.Location,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
