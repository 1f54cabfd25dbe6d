package ui

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jw6ventures/clinicgrid/internal/auth"
	"github.com/jw6ventures/clinicgrid/internal/calendar"
	"github.com/jw6ventures/clinicgrid/internal/grid"
	"github.com/jw6ventures/clinicgrid/internal/store"
)

var jst = time.FixedZone("JST", 9*60*60)

type fakeCalendar struct {
	view *calendar.DayView
	err  error
	req  calendar.DayRequest
}

func (f *fakeCalendar) DayView(_ context.Context, req calendar.DayRequest) (*calendar.DayView, error) {
	f.req = req
	return f.view, f.err
}

func (f *fakeCalendar) ParseDate(value string) (time.Time, error) {
	if value == "" {
		return f.Today(), nil
	}
	return time.ParseInLocation(calendar.DateLayout, value, jst)
}

func (f *fakeCalendar) Today() time.Time {
	return time.Date(2024, 3, 4, 0, 0, 0, 0, jst)
}

func sampleView() *calendar.DayView {
	cfg := grid.DefaultConfig()
	cfg.Location = jst
	start := time.Date(2024, 3, 4, 9, 0, 0, 0, jst)
	appt := &store.Appointment{Status: store.StatusConfirmed}
	return &calendar.DayView{
		Date:   "2024-03-04",
		Height: float64(cfg.EndHour-cfg.StartHour) * cfg.PixelsPerHour(),
		Slots:  grid.TimeSlots(cfg),
		Columns: []calendar.Column{{
			Practitioner: store.Practitioner{Name: "Dr. Ito", Color: "#3b82f6"},
			Items: []calendar.Item{{
				Event: calendar.Event{
					ID: "a1", Title: "<script>alert(1)</script>", Start: start, End: start.Add(time.Hour),
					Resource: calendar.Resource{Type: grid.TypeAppointment, Appointment: appt},
				},
				Layout: grid.Block{Top: 720, Height: 80, Left: 50, Width: 50, ZIndex: 302},
			}},
		}},
		Indicator: grid.Indicator{Visible: true, Top: 820},
	}
}

func staffRequest(target string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return req.WithContext(auth.WithStaff(req.Context(), &auth.Staff{Subject: "desk", Role: auth.RoleReceptionist}))
}

func TestDayRendersBlocks(t *testing.T) {
	cal := &fakeCalendar{view: sampleView()}
	h := NewHandler(cal, "Sakura Clinic")
	rec := httptest.NewRecorder()

	h.Day(rec, staffRequest("/day?date=2024-03-04"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, want := range []string{
		"Sakura Clinic",
		"Dr. Ito",
		"top: 720.00px",
		"height: 80.00px",
		"left: 50.0000%",
		"z-index: 302",
		"block appointment confirmed",
		"09:00-10:00",
		`class="now"`,
		"date=2024-03-03",
		"date=2024-03-05",
		"Mon, 4 Mar 2024",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if strings.Contains(body, "<script>alert") {
		t.Error("event title was not escaped")
	}
	if cal.req.PractitionerID != nil {
		t.Error("unexpected practitioner filter")
	}
}

func TestDayHidesIndicatorOnOtherDays(t *testing.T) {
	view := sampleView()
	view.Indicator = grid.Indicator{}
	h := NewHandler(&fakeCalendar{view: view}, "")
	rec := httptest.NewRecorder()

	h.Day(rec, staffRequest("/day?date=2024-03-04"))

	if strings.Contains(rec.Body.String(), `class="now"`) {
		t.Error("indicator rendered for a day that is not today")
	}
}

func TestDayErrors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		err    error
		staff  bool
		want   int
	}{
		{name: "no staff", target: "/day", staff: false, want: http.StatusForbidden},
		{name: "bad date", target: "/day?date=tomorrow", staff: true, want: http.StatusBadRequest},
		{name: "bad practitioner", target: "/day?practitioner=x", staff: true, want: http.StatusBadRequest},
		{name: "unknown practitioner", target: "/day?practitioner=" + uuid.NewString(), err: store.ErrNotFound, staff: true, want: http.StatusNotFound},
		{name: "store failure", target: "/day", err: errors.New("db down"), staff: true, want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(&fakeCalendar{view: sampleView(), err: tt.err}, "")
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.staff {
				req = staffRequest(tt.target)
			}
			rec := httptest.NewRecorder()
			h.Day(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestHomeRedirectsToToday(t *testing.T) {
	h := NewHandler(&fakeCalendar{}, "")
	rec := httptest.NewRecorder()

	h.Home(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := rec.Header().Get("Location"); got != "/day?date=2024-03-04" {
		t.Errorf("Location = %q", got)
	}
}
