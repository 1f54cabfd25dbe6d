package ics

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	"github.com/jw6ventures/clinicgrid/internal/store"
)

// MaxOccurrencesPerRule bounds the blocks one rule can produce in a window.
const MaxOccurrencesPerRule = 400

// ExpandRule materialises rule into availability blocks whose start falls in
// [from, to). Wall-clock times are interpreted in loc. The second result
// reports whether the occurrence cap cut the expansion short.
func ExpandRule(rule store.AvailabilityRule, from, to time.Time, loc *time.Location) ([]store.AvailabilityBlock, bool, error) {
	if loc == nil {
		loc = time.UTC
	}
	sh, sm, err := parseClock(rule.StartTime)
	if err != nil {
		return nil, false, fmt.Errorf("rule %s start: %w", rule.ID, err)
	}
	eh, em, err := parseClock(rule.EndTime)
	if err != nil {
		return nil, false, fmt.Errorf("rule %s end: %w", rule.ID, err)
	}
	if eh*60+em <= sh*60+sm {
		return nil, false, fmt.Errorf("rule %s: end time %s must be after start time %s", rule.ID, rule.EndTime, rule.StartTime)
	}

	r, err := rrule.StrToRRule(strings.TrimPrefix(strings.TrimSpace(rule.RRule), "RRULE:"))
	if err != nil {
		return nil, false, fmt.Errorf("rule %s: parse rrule: %w", rule.ID, err)
	}
	vf := rule.ValidFrom.In(loc)
	r.DTStart(time.Date(vf.Year(), vf.Month(), vf.Day(), sh, sm, 0, 0, loc))

	starts := r.Between(from.In(loc), to.In(loc), true)
	truncated := false
	if len(starts) > MaxOccurrencesPerRule {
		starts = starts[:MaxOccurrencesPerRule]
		truncated = true
	}

	ruleID := rule.ID
	blocks := make([]store.AvailabilityBlock, 0, len(starts))
	for _, s := range starts {
		if !s.Before(to) {
			continue
		}
		s = s.In(loc)
		end := time.Date(s.Year(), s.Month(), s.Day(), eh, em, 0, 0, loc)
		blocks = append(blocks, store.AvailabilityBlock{
			ID:             uuid.New(),
			PractitionerID: rule.PractitionerID,
			RuleID:         &ruleID,
			Start:          s,
			End:            end,
		})
	}
	return blocks, truncated, nil
}

// parseClock reads HH:MM.
func parseClock(v string) (int, int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(v))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", v)
	}
	return t.Hour(), t.Minute(), nil
}
