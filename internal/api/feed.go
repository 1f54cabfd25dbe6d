package api

import (
	"net/http"

	"github.com/jw6ventures/clinicgrid/internal/auth"
	httperrors "github.com/jw6ventures/clinicgrid/internal/http/errors"
	"github.com/jw6ventures/clinicgrid/internal/ics"
)

// AppointmentFeed exports ?from=..?to= as text/calendar with an ETag.
func (h *Handler) AppointmentFeed(w http.ResponseWriter, r *http.Request) {
	staff, _ := auth.StaffFromContext(r.Context())
	if !auth.CanViewSchedule(staff) {
		httperrors.Forbidden(w, r)
		return
	}
	from, to, err := h.dateRange(r)
	if err != nil {
		h.fail(w, r, err, "feed")
		return
	}
	pid, err := optionalUUID(r, "practitioner")
	if err != nil {
		h.fail(w, r, err, "feed")
		return
	}
	appts, err := h.appointments.ListRange(r.Context(), from, to, pid)
	if err != nil {
		h.fail(w, r, err, "feed")
		return
	}
	payload, err := ics.ExportAppointments(appts, ics.ExportOptions{Name: h.clinicName})
	if err != nil {
		httperrors.InternalError(w, r, err, "export appointments")
		return
	}

	etag := ics.ETag(payload)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "private, no-cache")
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="appointments.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}
