package grid

// Group is a set of events connected by a chain of pairwise overlaps. Two
// members need not overlap each other directly.
type Group struct {
	Events []Event
}

// Placement is an event's horizontal slot inside its group.
type Placement struct {
	Event        Event
	Column       int
	TotalColumns int
	Span         int
}

// GroupOverlapping partitions events so that events in different groups
// never overlap. Events are walked in SortEvents order and each joins the
// first group containing a member it overlaps.
func GroupOverlapping(events []Event) []Group {
	var groups []Group
	for _, ev := range SortEvents(events) {
		joined := false
		for i := range groups {
			if overlapsAny(ev, groups[i].Events) {
				groups[i].Events = append(groups[i].Events, ev)
				joined = true
				break
			}
		}
		if !joined {
			groups = append(groups, Group{Events: []Event{ev}})
		}
	}
	return groups
}

// PackColumns assigns each group member the first column it fits in, then
// widens it across following columns that hold nothing it overlaps.
// Members must already be in SortEvents order, as GroupOverlapping leaves them.
func PackColumns(g Group) []Placement {
	var columns [][]Event
	colOf := make([]int, len(g.Events))
	for i, ev := range g.Events {
		placed := false
		for c := range columns {
			if !overlapsAny(ev, columns[c]) {
				columns[c] = append(columns[c], ev)
				colOf[i] = c
				placed = true
				break
			}
		}
		if !placed {
			columns = append(columns, []Event{ev})
			colOf[i] = len(columns) - 1
		}
	}

	total := len(columns)
	placements := make([]Placement, len(g.Events))
	for i, ev := range g.Events {
		span := 1
		for next := colOf[i] + 1; next < total; next++ {
			if overlapsAny(ev, columns[next]) {
				break
			}
			span++
		}
		placements[i] = Placement{Event: ev, Column: colOf[i], TotalColumns: total, Span: span}
	}
	return placements
}

func overlapsAny(ev Event, members []Event) bool {
	for _, m := range members {
		if Overlaps(ev, m) {
			return true
		}
	}
	return false
}
