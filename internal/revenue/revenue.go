// Package revenue aggregates receipts for the dashboard.
package revenue

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jw6ventures/clinicgrid/internal/store"
)

const dateLayout = "2006-01-02"

// Day is one local calendar day of takings.
type Day struct {
	Date      string `json:"date"`
	AmountYen int64  `json:"amountYen"`
	Count     int    `json:"count"`
}

type MethodTotal struct {
	Method    string `json:"method"`
	AmountYen int64  `json:"amountYen"`
	Count     int    `json:"count"`
}

type PractitionerTotal struct {
	PractitionerID uuid.UUID `json:"practitionerId"`
	AmountYen      int64     `json:"amountYen"`
	Count          int       `json:"count"`
}

// Summary covers receipts issued in [From, To). Days has an entry for every
// local day of the range, including days without takings.
type Summary struct {
	From          time.Time           `json:"from"`
	To            time.Time           `json:"to"`
	TotalYen      int64               `json:"totalYen"`
	Count         int                 `json:"count"`
	Days          []Day               `json:"days"`
	Methods       []MethodTotal       `json:"methods"`
	Practitioners []PractitionerTotal `json:"practitioners"`
}

// Summarize totals receipts issued in [from, to), bucketing days in loc.
// Receipts outside the range are ignored.
func Summarize(receipts []store.Receipt, from, to time.Time, loc *time.Location) Summary {
	if loc == nil {
		loc = time.UTC
	}
	s := Summary{From: from, To: to, Days: []Day{}, Methods: []MethodTotal{}, Practitioners: []PractitionerTotal{}}

	dayIndex := map[string]int{}
	for d := localMidnight(from, loc); d.Before(to); d = d.AddDate(0, 0, 1) {
		key := d.Format(dateLayout)
		dayIndex[key] = len(s.Days)
		s.Days = append(s.Days, Day{Date: key})
	}

	methods := map[string]*MethodTotal{}
	practitioners := map[uuid.UUID]*PractitionerTotal{}
	for _, rc := range receipts {
		if rc.IssuedAt.Before(from) || !rc.IssuedAt.Before(to) {
			continue
		}
		s.TotalYen += rc.AmountYen
		s.Count++

		if i, ok := dayIndex[rc.IssuedAt.In(loc).Format(dateLayout)]; ok {
			s.Days[i].AmountYen += rc.AmountYen
			s.Days[i].Count++
		}

		m := methods[rc.Method]
		if m == nil {
			m = &MethodTotal{Method: rc.Method}
			methods[rc.Method] = m
		}
		m.AmountYen += rc.AmountYen
		m.Count++

		p := practitioners[rc.PractitionerID]
		if p == nil {
			p = &PractitionerTotal{PractitionerID: rc.PractitionerID}
			practitioners[rc.PractitionerID] = p
		}
		p.AmountYen += rc.AmountYen
		p.Count++
	}

	for _, m := range methods {
		s.Methods = append(s.Methods, *m)
	}
	sort.Slice(s.Methods, func(i, j int) bool {
		if s.Methods[i].AmountYen != s.Methods[j].AmountYen {
			return s.Methods[i].AmountYen > s.Methods[j].AmountYen
		}
		return s.Methods[i].Method < s.Methods[j].Method
	})

	for _, p := range practitioners {
		s.Practitioners = append(s.Practitioners, *p)
	}
	sort.Slice(s.Practitioners, func(i, j int) bool {
		if s.Practitioners[i].AmountYen != s.Practitioners[j].AmountYen {
			return s.Practitioners[i].AmountYen > s.Practitioners[j].AmountYen
		}
		return s.Practitioners[i].PractitionerID.String() < s.Practitioners[j].PractitionerID.String()
	})
	return s
}

func localMidnight(t time.Time, loc *time.Location) time.Time {
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, loc)
}
