package api

import (
	"net/http"

	"github.com/jw6ventures/clinicgrid/internal/auth"
	"github.com/jw6ventures/clinicgrid/internal/calendar"
	httperrors "github.com/jw6ventures/clinicgrid/internal/http/errors"
)

// Layout returns the positioned day view for ?date= and optional ?practitioner=.
func (h *Handler) Layout(w http.ResponseWriter, r *http.Request) {
	staff, _ := auth.StaffFromContext(r.Context())
	if !auth.CanViewSchedule(staff) {
		httperrors.Forbidden(w, r)
		return
	}
	date, err := h.cal.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		h.fail(w, r, invalidf("invalid date"), "layout")
		return
	}
	pid, err := optionalUUID(r, "practitioner")
	if err != nil {
		h.fail(w, r, err, "layout")
		return
	}

	view, err := h.cal.DayView(r.Context(), calendar.DayRequest{Date: date, PractitionerID: pid})
	if err != nil {
		h.fail(w, r, err, "practitioner")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Now returns only the current-time indicator so clients can move the line
// without refetching the layout.
func (h *Handler) Now(w http.ResponseWriter, r *http.Request) {
	staff, _ := auth.StaffFromContext(r.Context())
	if !auth.CanViewSchedule(staff) {
		httperrors.Forbidden(w, r)
		return
	}
	date, err := h.cal.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		h.fail(w, r, invalidf("invalid date"), "indicator")
		return
	}
	writeJSON(w, http.StatusOK, h.cal.Indicator(date))
}

func (h *Handler) ListPractitioners(w http.ResponseWriter, r *http.Request) {
	staff, _ := auth.StaffFromContext(r.Context())
	if !auth.CanViewSchedule(staff) {
		httperrors.Forbidden(w, r)
		return
	}
	ps, err := h.practitioners.List(r.Context())
	if err != nil {
		h.fail(w, r, err, "practitioners")
		return
	}
	writeJSON(w, http.StatusOK, ps)
}
