// Package grid converts time-ranged calendar events into pixel-positioned,
// column-packed blocks for a day view.
//
// Everything in this package is a pure function of its inputs. Callers own
// validation of timestamps; the engine never returns errors for event data.
package grid

import (
	"fmt"
	"time"
)

// Strategy selects how overlapping events share horizontal space.
type Strategy string

const (
	// StrategyColumns packs overlapping events into columns and lets them
	// expand rightward into free columns.
	StrategyColumns Strategy = "columns"
	// StrategyCascade offsets overlapping events by a fixed percentage. This
	// is the older layout and is kept for surfaces that still expect it.
	StrategyCascade Strategy = "cascade"
)

// zIndexStride separates priority bands. Column offsets are clamped to
// zIndexStride-1 so they never cross into the next event type's band.
const zIndexStride = 100

// Config holds every tunable of the grid. None of the values are assumed
// elsewhere in the package.
type Config struct {
	// SlotMinutes is the duration represented by one grid row.
	SlotMinutes int
	// SlotHeight is the pixel height of one grid row.
	SlotHeight float64
	// MinHeight is the smallest height a block is ever rendered at.
	MinHeight float64

	// StartHour and EndHour bound the visible window, [StartHour, EndHour).
	StartHour int
	EndHour   int

	// Location is the reference timezone events are projected into.
	Location *time.Location

	// Priority orders event types on the z axis; higher renders on top.
	Priority map[EventType]int

	Strategy Strategy

	// ClipIndicator hides the current-time line outside the visible window.
	ClipIndicator bool
}

// DefaultPriority renders appointments above exceptions, and exceptions above
// plain availability and resource bookings.
func DefaultPriority() map[EventType]int {
	return map[EventType]int{
		TypeAvailability:          1,
		TypeResource:              1,
		TypeAvailabilityException: 2,
		TypeAppointment:           3,
	}
}

// DefaultConfig returns a full-day grid with 15 minute rows.
func DefaultConfig() Config {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		loc = time.FixedZone("JST", 9*60*60)
	}
	return Config{
		SlotMinutes: 15,
		SlotHeight:  20,
		MinHeight:   20,
		StartHour:   0,
		EndHour:     24,
		Location:    loc,
		Priority:    DefaultPriority(),
		Strategy:    StrategyColumns,
	}
}

// Validate reports configuration values the calculators cannot work with.
func (c Config) Validate() error {
	if c.SlotMinutes <= 0 || 60%c.SlotMinutes != 0 {
		return fmt.Errorf("grid: slot minutes must divide an hour, got %d", c.SlotMinutes)
	}
	if c.SlotHeight <= 0 {
		return fmt.Errorf("grid: slot height must be positive, got %v", c.SlotHeight)
	}
	if c.MinHeight < 0 {
		return fmt.Errorf("grid: min height must not be negative, got %v", c.MinHeight)
	}
	if c.StartHour < 0 || c.EndHour > 24 || c.StartHour >= c.EndHour {
		return fmt.Errorf("grid: invalid visible window %d-%d", c.StartHour, c.EndHour)
	}
	switch c.Strategy {
	case "", StrategyColumns, StrategyCascade:
	default:
		return fmt.Errorf("grid: unknown strategy %q", c.Strategy)
	}
	return nil
}

// PixelsPerHour is the rendered height of one hour.
func (c Config) PixelsPerHour() float64 {
	return float64(60/c.SlotMinutes) * c.SlotHeight
}

// Zone is the reference timezone, UTC when unset.
func (c Config) Zone() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

func (c Config) priority(t EventType) int {
	if c.Priority == nil {
		return DefaultPriority()[t]
	}
	return c.Priority[t]
}
