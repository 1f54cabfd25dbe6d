package grid

import (
	"fmt"
	"math"
	"time"
)

// TimeSlot is one grid row label.
type TimeSlot struct {
	Hour   int    `json:"hour"`
	Minute int    `json:"minute"`
	Time   string `json:"time"`
}

// TimeSlots enumerates the rows of the visible window.
func TimeSlots(cfg Config) []TimeSlot {
	perHour := 60 / cfg.SlotMinutes
	slots := make([]TimeSlot, 0, (cfg.EndHour-cfg.StartHour)*perHour)
	for h := cfg.StartHour; h < cfg.EndHour; h++ {
		for m := 0; m < 60; m += cfg.SlotMinutes {
			slots = append(slots, TimeSlot{Hour: h, Minute: m, Time: fmt.Sprintf("%02d:%02d", h, m)})
		}
	}
	return slots
}

// Top returns the vertical offset of start, measured from StartHour in the
// configured timezone.
func Top(start time.Time, cfg Config) float64 {
	local := start.In(cfg.Zone())
	hours := float64(local.Hour() - cfg.StartHour)
	minutes := float64(local.Minute()) + float64(local.Second())/60
	return hours*cfg.PixelsPerHour() + minutes/float64(cfg.SlotMinutes)*cfg.SlotHeight
}

// Height returns the rendered height of [start, end). Blocks are never shorter
// than MinHeight, which also covers zero and negative durations.
func Height(start, end time.Time, cfg Config) float64 {
	minutes := end.Sub(start).Minutes()
	h := minutes / float64(cfg.SlotMinutes) * cfg.SlotHeight
	return math.Max(h, cfg.MinHeight)
}
