package grid

import (
	"sort"
	"time"
)

// EventType discriminates what a block represents.
type EventType string

const (
	TypeAppointment           EventType = "appointment"
	TypeAvailabilityException EventType = "availability_exception"
	TypeAvailability          EventType = "availability"
	TypeResource              EventType = "resource"
)

// Event is the unit the layout engine positions.
type Event struct {
	ID    string    `json:"id"`
	Title string    `json:"title,omitempty"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Type  EventType `json:"type"`
}

// Overlaps reports whether a and b share any instant. Ranges are half-open,
// so an event ending exactly when another starts does not overlap it.
func Overlaps(a, b Event) bool {
	return a.Start.Before(b.End) && a.End.After(b.Start)
}

// SortEvents returns a copy ordered by start ascending, then end descending so
// longer events claim the leftmost column, then ID for a stable result.
func SortEvents(events []Event) []Event {
	sorted := make([]Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if !a.End.Equal(b.End) {
			return a.End.After(b.End)
		}
		return a.ID < b.ID
	})
	return sorted
}
