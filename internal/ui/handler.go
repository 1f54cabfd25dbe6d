package ui

import (
	"context"
	"html/template"
	"net/http"
	"time"

	"github.com/jw6ventures/clinicgrid/internal/calendar"
)

// Calendar is satisfied by *calendar.Service.
type Calendar interface {
	DayView(ctx context.Context, req calendar.DayRequest) (*calendar.DayView, error)
	ParseDate(value string) (time.Time, error)
	Today() time.Time
}

// Handler serves server-rendered HTML pages.
type Handler struct {
	cal        Calendar
	clinicName string
	templates  map[string]*template.Template
}

func NewHandler(cal Calendar, clinicName string) *Handler {
	if clinicName == "" {
		clinicName = "Clinic"
	}
	return &Handler{cal: cal, clinicName: clinicName, templates: templates}
}

// Home sends the browser to today's schedule.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	h.redirect(w, r, "/day", map[string]string{"date": h.cal.Today().Format(calendar.DateLayout)})
}
