package ui

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jw6ventures/clinicgrid/internal/auth"
	"github.com/jw6ventures/clinicgrid/internal/calendar"
	"github.com/jw6ventures/clinicgrid/internal/grid"
	httperrors "github.com/jw6ventures/clinicgrid/internal/http/errors"
	"github.com/jw6ventures/clinicgrid/internal/store"
)

type gridLine struct {
	Top   float64
	Label string
	Hour  bool
}

type blockView struct {
	Title  string
	Kind   string
	Status string
	Time   string
	Top    float64
	Height float64
	Left   float64
	Width  float64
	Z      int
}

type columnView struct {
	Name   string
	Color  string
	Blocks []blockView
}

type dayPage struct {
	Title        string
	ClinicName   string
	Date         string
	Heading      string
	Prev         string
	Next         string
	Today        string
	Practitioner string
	Height       float64
	Lines        []gridLine
	Columns      []columnView
	Indicator    grid.Indicator
	Dropped      int
}

// Day renders /day?date=YYYY-MM-DD[&practitioner=uuid].
func (h *Handler) Day(w http.ResponseWriter, r *http.Request) {
	staff, _ := auth.StaffFromContext(r.Context())
	if !auth.CanViewSchedule(staff) {
		httperrors.Forbidden(w, r)
		return
	}

	q := r.URL.Query()
	date, err := h.cal.ParseDate(q.Get("date"))
	if err != nil {
		httperrors.BadRequestError(w, r, err, "invalid date")
		return
	}
	req := calendar.DayRequest{Date: date}
	if raw := q.Get("practitioner"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httperrors.BadRequestError(w, r, err, "invalid practitioner")
			return
		}
		req.PractitionerID = &id
	}

	view, err := h.cal.DayView(r.Context(), req)
	if errors.Is(err, store.ErrNotFound) {
		httperrors.NotFound(w, r, "practitioner")
		return
	}
	if err != nil {
		httperrors.InternalError(w, r, err, "failed to build day view")
		return
	}

	page := buildDayPage(view, date.Location())
	page.ClinicName = h.clinicName
	page.Title = page.Heading + " | " + h.clinicName
	page.Today = h.cal.Today().Format(calendar.DateLayout)
	if req.PractitionerID != nil {
		page.Practitioner = req.PractitionerID.String()
	}
	h.render(w, r, "day.html", page)
}

func buildDayPage(view *calendar.DayView, loc *time.Location) dayPage {
	day, _ := time.ParseInLocation(calendar.DateLayout, view.Date, loc)
	page := dayPage{
		Date:      view.Date,
		Heading:   day.Format("Mon, 2 Jan 2006"),
		Prev:      day.AddDate(0, 0, -1).Format(calendar.DateLayout),
		Next:      day.AddDate(0, 0, 1).Format(calendar.DateLayout),
		Height:    view.Height,
		Indicator: view.Indicator,
		Dropped:   view.Dropped,
	}

	if n := len(view.Slots); n > 0 {
		rowHeight := view.Height / float64(n)
		for i, s := range view.Slots {
			line := gridLine{Top: float64(i) * rowHeight, Hour: s.Minute == 0}
			if line.Hour {
				line.Label = s.Time
			}
			page.Lines = append(page.Lines, line)
		}
	}

	for _, col := range view.Columns {
		cv := columnView{Name: col.Practitioner.Name, Color: col.Practitioner.Color}
		if cv.Name == "" {
			cv.Name = "Unassigned"
		}
		for _, it := range col.Items {
			cv.Blocks = append(cv.Blocks, blockView{
				Title:  it.Event.Title,
				Kind:   string(it.Event.Resource.Type),
				Status: appointmentStatus(it.Event),
				Time:   it.Event.Start.In(loc).Format("15:04") + "-" + it.Event.End.In(loc).Format("15:04"),
				Top:    it.Layout.Top,
				Height: it.Layout.Height,
				Left:   it.Layout.Left,
				Width:  it.Layout.Width,
				Z:      it.Layout.ZIndex,
			})
		}
		page.Columns = append(page.Columns, cv)
	}
	return page
}

func appointmentStatus(e calendar.Event) string {
	if e.Resource.Appointment == nil {
		return ""
	}
	return string(e.Resource.Appointment.Status)
}
