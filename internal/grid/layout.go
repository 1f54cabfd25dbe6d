package grid

import "time"

// Block is the rendered geometry of one event. Left and Width are percentages
// of the surface width; Top and Height are pixels.
type Block struct {
	ID           string    `json:"id"`
	Type         EventType `json:"type"`
	Top          float64   `json:"top"`
	Height       float64   `json:"height"`
	Left         float64   `json:"left"`
	Width        float64   `json:"width"`
	ZIndex       int       `json:"zIndex"`
	Column       int       `json:"column"`
	TotalColumns int       `json:"totalColumns"`
	Span         int       `json:"span"`
}

// Layout positions every event on a single surface. The result has one block
// per input event, in input order.
func Layout(events []Event, cfg Config) []Block {
	slots := make(map[eventKey][]int, len(events))
	for i, ev := range events {
		k := keyOf(ev)
		slots[k] = append(slots[k], i)
	}

	blocks := make([]Block, len(events))
	for _, g := range GroupOverlapping(events) {
		var placements []Placement
		if cfg.Strategy == StrategyCascade {
			placements = cascadePlacements(g)
		} else {
			placements = PackColumns(g)
		}
		for _, p := range placements {
			// Identical duplicates are interchangeable and fill in input order.
			k := keyOf(p.Event)
			idx := slots[k][0]
			slots[k] = slots[k][1:]
			blocks[idx] = toBlock(p, cfg)
		}
	}
	return blocks
}

type eventKey struct {
	id         string
	start, end int64
	typ        EventType
}

func keyOf(ev Event) eventKey {
	return eventKey{id: ev.ID, start: ev.Start.UnixNano(), end: ev.End.UnixNano(), typ: ev.Type}
}

// zIndex is priority*zIndexStride + column + 1, with the column term capped
// below the stride. Columns past the cap share the band's top value.
func zIndex(priority, column int) int {
	return priority*zIndexStride + min(column+1, zIndexStride-1)
}

func toBlock(p Placement, cfg Config) Block {
	b := Block{
		ID:           p.Event.ID,
		Type:         p.Event.Type,
		Top:          Top(p.Event.Start, cfg),
		Height:       Height(p.Event.Start, p.Event.End, cfg),
		ZIndex:       zIndex(cfg.priority(p.Event.Type), p.Column),
		Column:       p.Column,
		TotalColumns: p.TotalColumns,
		Span:         p.Span,
	}
	if cfg.Strategy == StrategyCascade {
		offset := CascadeOffset(p.TotalColumns)
		b.Left = float64(p.Column) * offset
		b.Width = 100 - offset*float64(p.TotalColumns-1)
		return b
	}
	b.Left = float64(p.Column) / float64(p.TotalColumns) * 100
	b.Width = float64(p.Span) / float64(p.TotalColumns) * 100
	return b
}

// CascadeOffset is the per-event left offset, in percent, of the cascade
// layout for a group of n events.
func CascadeOffset(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n <= 2:
		return 15
	case n <= 4:
		return 12
	default:
		return 60 / float64(n)
	}
}

// cascadePlacements stacks group members one per position in sort order.
func cascadePlacements(g Group) []Placement {
	n := len(g.Events)
	placements := make([]Placement, n)
	for i, ev := range g.Events {
		placements[i] = Placement{Event: ev, Column: i, TotalColumns: n, Span: 1}
	}
	return placements
}

// Indicator is the current-time line of a day view.
type Indicator struct {
	Visible bool    `json:"visible"`
	Top     float64 `json:"top"`
}

// CurrentTimeIndicator places the now line for the displayed day. It is
// hidden unless displayed is today in the configured timezone, and, with
// ClipIndicator set, while now is outside the visible window.
func CurrentTimeIndicator(now, displayed time.Time, cfg Config) Indicator {
	loc := cfg.Zone()
	n := now.In(loc)
	d := displayed.In(loc)
	if n.Year() != d.Year() || n.YearDay() != d.YearDay() {
		return Indicator{}
	}
	if cfg.ClipIndicator && (n.Hour() < cfg.StartHour || n.Hour() >= cfg.EndHour) {
		return Indicator{}
	}
	return Indicator{Visible: true, Top: Top(now, cfg)}
}
