package grid

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Location = time.UTC
	return cfg
}

func at(hour, minute int) time.Time {
	return time.Date(2024, 5, 10, hour, minute, 0, 0, time.UTC)
}

func ev(id string, sh, sm, eh, em int) Event {
	return Event{ID: id, Start: at(sh, sm), End: at(eh, em), Type: TypeAppointment}
}

func randomEvents(r *rand.Rand, n int) []Event {
	events := make([]Event, n)
	for i := range events {
		startSlot := r.Intn(40)
		length := 1 + r.Intn(8)
		start := at(8, 0).Add(time.Duration(startSlot*15) * time.Minute)
		events[i] = Event{
			ID:    fmt.Sprintf("e%d", i),
			Start: start,
			End:   start.Add(time.Duration(length*15) * time.Minute),
			Type:  TypeAppointment,
		}
	}
	return events
}

func TestTopAndHeight(t *testing.T) {
	cfg := testConfig()

	assert.Equal(t, 0.0, Top(at(0, 0), cfg))
	assert.Equal(t, 80.0*9+40, Top(at(9, 30), cfg))

	cfg.StartHour = 8
	assert.Equal(t, 80.0+20, Top(at(9, 15), cfg))

	assert.Equal(t, 80.0, Height(at(9, 0), at(10, 0), cfg))
	assert.Equal(t, 30.0, Height(at(9, 0), at(9, 22).Add(30*time.Second), cfg))
}

func TestTopUsesReferenceTimezone(t *testing.T) {
	cfg := testConfig()
	cfg.Location = time.FixedZone("JST", 9*60*60)

	// 00:30 UTC is 09:30 in the reference zone.
	start := time.Date(2024, 5, 10, 0, 30, 0, 0, time.UTC)
	assert.Equal(t, 80.0*9+40, Top(start, cfg))
}

func TestHeightNeverBelowMinimum(t *testing.T) {
	cfg := testConfig()
	cases := map[string][2]time.Time{
		"sub slot":  {at(9, 0), at(9, 5)},
		"zero":      {at(9, 0), at(9, 0)},
		"negative":  {at(10, 0), at(9, 0)},
		"one slot":  {at(9, 0), at(9, 15)},
		"fourteen":  {at(9, 0), at(9, 14)},
		"one milli": {at(9, 0), at(9, 0).Add(time.Millisecond)},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, cfg.MinHeight, Height(c[0], c[1], cfg))
		})
	}
}

func TestTimeSlots(t *testing.T) {
	cfg := testConfig()
	slots := TimeSlots(cfg)
	require.Len(t, slots, 96)
	assert.Equal(t, TimeSlot{Hour: 0, Minute: 0, Time: "00:00"}, slots[0])
	assert.Equal(t, TimeSlot{Hour: 23, Minute: 45, Time: "23:45"}, slots[95])

	cfg.StartHour, cfg.EndHour = 8, 22
	slots = TimeSlots(cfg)
	require.Len(t, slots, 56)
	assert.Equal(t, "08:00", slots[0].Time)
	assert.Equal(t, "21:45", slots[len(slots)-1].Time)
}

func TestBoundaryEventsShareColumn(t *testing.T) {
	a := ev("a", 10, 0, 11, 0)
	b := ev("b", 11, 0, 12, 0)
	require.False(t, Overlaps(a, b))

	groups := GroupOverlapping([]Event{b, a})
	require.Len(t, groups, 2)

	blocks := Layout([]Event{a, b}, testConfig())
	for _, blk := range blocks {
		assert.Equal(t, 0, blk.Column)
		assert.Equal(t, 1, blk.TotalColumns)
		assert.Equal(t, 100.0, blk.Width)
	}
}

func TestTwoOverlappingEvents(t *testing.T) {
	a := ev("a", 9, 0, 10, 0)
	b := ev("b", 9, 30, 10, 30)

	blocks := Layout([]Event{b, a}, testConfig())
	require.Len(t, blocks, 2)

	byID := map[string]Block{blocks[0].ID: blocks[0], blocks[1].ID: blocks[1]}
	assert.Equal(t, 0, byID["a"].Column)
	assert.Equal(t, 1, byID["b"].Column)
	for _, blk := range blocks {
		assert.Equal(t, 2, blk.TotalColumns)
		assert.Equal(t, 1, blk.Span)
		assert.Equal(t, 50.0, blk.Width)
	}
	assert.Equal(t, 50.0, byID["b"].Left)
	assert.Greater(t, byID["b"].ZIndex, byID["a"].ZIndex)
}

func TestRightExpansion(t *testing.T) {
	// long occupies column 0, x and y stack in column 1, z only overlaps
	// long and x so it sits in column 2. y can widen into column 2.
	long := ev("long", 9, 0, 12, 0)
	x := ev("x", 9, 0, 10, 0)
	z := ev("z", 9, 30, 10, 0)
	y := ev("y", 10, 0, 11, 0)

	blocks := Layout([]Event{long, x, z, y}, testConfig())
	got := map[string]Block{}
	for _, b := range blocks {
		got[b.ID] = b
	}

	assert.Equal(t, 3, got["long"].TotalColumns)
	assert.Equal(t, 1, got["long"].Span)
	assert.Equal(t, 1, got["x"].Column)
	assert.Equal(t, 2, got["z"].Column)
	assert.Equal(t, 1, got["y"].Column)
	assert.Equal(t, 2, got["y"].Span)
	assert.InDelta(t, 200.0/3, got["y"].Width, 1e-9)
}

func TestSortPlacesLongerEventFirst(t *testing.T) {
	short := ev("short", 9, 0, 9, 30)
	long := ev("long", 9, 0, 11, 0)

	sorted := SortEvents([]Event{short, long})
	assert.Equal(t, "long", sorted[0].ID)

	blocks := Layout([]Event{short, long}, testConfig())
	assert.Equal(t, 1, blocks[0].Column)
	assert.Equal(t, 0, blocks[1].Column)
}

func TestZIndexPriority(t *testing.T) {
	appt := ev("appt", 9, 0, 10, 0)
	exc := Event{ID: "exc", Start: at(9, 0), End: at(12, 0), Type: TypeAvailabilityException}

	blocks := Layout([]Event{appt, exc}, testConfig())
	// The exception is longer, so it owns column 0 and the appointment column 1.
	assert.Greater(t, blocks[0].ZIndex, blocks[1].ZIndex)

	cfg := testConfig()
	cfg.Priority = map[EventType]int{TypeAppointment: 1, TypeAvailabilityException: 5}
	blocks = Layout([]Event{appt, exc}, cfg)
	assert.Less(t, blocks[0].ZIndex, blocks[1].ZIndex)
}

func TestZIndexStaysInPriorityBand(t *testing.T) {
	cfg := testConfig()
	events := make([]Event, 0, 151)
	for i := 0; i < 150; i++ {
		events = append(events, ev(fmt.Sprintf("appt-%03d", i), 9, 0, 10, 0))
	}
	exc := Event{ID: "exc", Start: at(9, 0), End: at(9, 30), Type: TypeAvailabilityException}
	events = append(events, exc)

	cfg.Priority = map[EventType]int{TypeAppointment: 3, TypeAvailabilityException: 4}
	blocks := Layout(events, cfg)
	require.Equal(t, 151, blocks[0].TotalColumns)
	for _, b := range blocks[:150] {
		assert.GreaterOrEqual(t, b.ZIndex, 301, b.ID)
		assert.LessOrEqual(t, b.ZIndex, 399, b.ID)
		assert.Less(t, b.ZIndex, blocks[150].ZIndex, b.ID)
	}
	assert.Equal(t, 1, zIndex(0, 0))
	assert.Equal(t, 399, zIndex(3, 98))
	assert.Equal(t, 399, zIndex(3, 500))
}

func TestCascadeStrategy(t *testing.T) {
	cfg := testConfig()
	cfg.Strategy = StrategyCascade

	assert.Equal(t, 15.0, CascadeOffset(2))
	assert.Equal(t, 12.0, CascadeOffset(3))
	assert.Equal(t, 12.0, CascadeOffset(4))
	assert.Equal(t, 10.0, CascadeOffset(6))

	events := []Event{ev("a", 9, 0, 10, 0), ev("b", 9, 15, 10, 0), ev("c", 9, 30, 10, 30)}
	blocks := Layout(events, cfg)
	assert.Equal(t, 0.0, blocks[0].Left)
	assert.Equal(t, 12.0, blocks[1].Left)
	assert.Equal(t, 24.0, blocks[2].Left)
	for _, b := range blocks {
		assert.Equal(t, 76.0, b.Width)
	}

	single := Layout([]Event{ev("solo", 13, 0, 14, 0)}, cfg)
	assert.Equal(t, 100.0, single[0].Width)
}

func TestLayoutKeepsInputOrderWithDuplicateIDs(t *testing.T) {
	events := []Event{ev("dup", 11, 0, 12, 0), ev("dup", 9, 0, 10, 0)}
	blocks := Layout(events, testConfig())
	require.Len(t, blocks, 2)
	assert.Equal(t, Top(at(11, 0), testConfig()), blocks[0].Top)
	assert.Equal(t, Top(at(9, 0), testConfig()), blocks[1].Top)
}

func TestGroupingProperties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for iter := 0; iter < 200; iter++ {
		events := randomEvents(r, 1+r.Intn(25))
		groups := GroupOverlapping(events)

		// Total coverage: every event in exactly one group.
		seen := map[string]int{}
		for _, g := range groups {
			for _, e := range g.Events {
				seen[e.ID]++
			}
		}
		require.Len(t, seen, len(events))
		for id, n := range seen {
			require.Equal(t, 1, n, "event %s grouped %d times", id, n)
		}

		// No direct overlap across groups.
		for i := range groups {
			for j := i + 1; j < len(groups); j++ {
				for _, a := range groups[i].Events {
					for _, b := range groups[j].Events {
						require.False(t, Overlaps(a, b), "%s and %s overlap across groups", a.ID, b.ID)
					}
				}
			}
		}

		// Every pair inside a group is connected by an overlap chain.
		for _, g := range groups {
			require.True(t, connected(g.Events), "group is not overlap-connected")
		}

		// Columns never hold overlapping events and every span is at least one.
		for _, g := range groups {
			placements := PackColumns(g)
			require.Len(t, placements, len(g.Events))
			for i, p := range placements {
				require.GreaterOrEqual(t, p.Span, 1)
				require.LessOrEqual(t, p.Column+p.Span, p.TotalColumns)
				for j := i + 1; j < len(placements); j++ {
					q := placements[j]
					if p.Column == q.Column {
						require.False(t, Overlaps(p.Event, q.Event))
					}
				}
			}
		}
	}
}

func TestLayoutIsIdempotent(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	events := randomEvents(r, 30)
	cfg := testConfig()

	first := Layout(events, cfg)
	second := Layout(events, cfg)
	assert.Equal(t, first, second)

	copied := append([]Event(nil), events...)
	assert.Equal(t, first, Layout(copied, cfg))
}

func TestCurrentTimeIndicator(t *testing.T) {
	cfg := testConfig()
	now := at(14, 30)

	ind := CurrentTimeIndicator(now, at(0, 0), cfg)
	assert.True(t, ind.Visible)
	assert.Equal(t, Top(now, cfg), ind.Top)

	assert.False(t, CurrentTimeIndicator(now, at(0, 0).AddDate(0, 0, 1), cfg).Visible)

	cfg.StartHour, cfg.EndHour = 8, 22
	cfg.ClipIndicator = true
	assert.False(t, CurrentTimeIndicator(at(23, 0), at(0, 0), cfg).Visible)
	assert.False(t, CurrentTimeIndicator(at(7, 59), at(0, 0), cfg).Visible)
	assert.True(t, CurrentTimeIndicator(at(8, 0), at(0, 0), cfg).Visible)

	cfg.ClipIndicator = false
	assert.True(t, CurrentTimeIndicator(at(23, 0), at(0, 0), cfg).Visible)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.SlotMinutes = 7
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.StartHour, bad.EndHour = 22, 8
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.Strategy = "stack"
	assert.Error(t, bad.Validate())
}

func connected(events []Event) bool {
	if len(events) == 0 {
		return true
	}
	visited := make([]bool, len(events))
	stack := []int{0}
	visited[0] = true
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for i := range events {
			if !visited[i] && Overlaps(events[cur], events[i]) {
				visited[i] = true
				stack = append(stack, i)
			}
		}
	}
	for _, v := range visited {
		if !v {
			return false
		}
	}
	return true
}
