package calendar

import (
	"time"

	"github.com/jw6ventures/clinicgrid/internal/grid"
	"github.com/jw6ventures/clinicgrid/internal/store"
)

// Resource is the payload behind an Event. Type says which pointer is set.
type Resource struct {
	Type         grid.EventType               `json:"type"`
	Appointment  *store.Appointment           `json:"appointment,omitempty"`
	Exception    *store.AvailabilityException `json:"exception,omitempty"`
	Availability *store.AvailabilityBlock     `json:"availability,omitempty"`
	Practitioner *store.Practitioner          `json:"practitioner,omitempty"`
}

// Event is one item on the day view.
type Event struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Resource Resource  `json:"resource"`
}

// GridEvent projects e onto the layout engine's input.
func (e Event) GridEvent() grid.Event {
	return grid.Event{ID: e.ID, Title: e.Title, Start: e.Start, End: e.End, Type: e.Resource.Type}
}

// Valid reports whether e has a positive duration.
func (e Event) Valid() bool {
	return e.End.After(e.Start)
}

// FromAppointments adapts bookings. Cancelled appointments are not shown.
func FromAppointments(appts []store.Appointment) []Event {
	out := make([]Event, 0, len(appts))
	for i := range appts {
		a := appts[i]
		if a.Status == store.StatusCancelled {
			continue
		}
		title := a.Title
		if title == "" {
			title = "Appointment"
		}
		out = append(out, Event{
			ID:       a.ID.String(),
			Title:    title,
			Start:    a.Start,
			End:      a.End,
			Resource: Resource{Type: grid.TypeAppointment, Appointment: &a},
		})
	}
	return out
}

// FromExceptions adapts closures and blocked time.
func FromExceptions(excs []store.AvailabilityException) []Event {
	out := make([]Event, 0, len(excs))
	for i := range excs {
		e := excs[i]
		title := e.Reason
		if title == "" {
			title = "Unavailable"
		}
		out = append(out, Event{
			ID:       e.ID.String(),
			Title:    title,
			Start:    e.Start,
			End:      e.End,
			Resource: Resource{Type: grid.TypeAvailabilityException, Exception: &e},
		})
	}
	return out
}

// FromAvailability adapts materialised working hours.
func FromAvailability(blocks []store.AvailabilityBlock) []Event {
	out := make([]Event, 0, len(blocks))
	for i := range blocks {
		b := blocks[i]
		out = append(out, Event{
			ID:       b.ID.String(),
			Title:    "Available",
			Start:    b.Start,
			End:      b.End,
			Resource: Resource{Type: grid.TypeAvailability, Availability: &b},
		})
	}
	return out
}
