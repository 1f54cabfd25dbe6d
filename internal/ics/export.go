package ics

import (
	"crypto/sha256"
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/jw6ventures/clinicgrid/internal/store"
)

const defaultProductID = "-//clinicgrid//appointments//EN"

// ExportOptions controls feed-level properties.
type ExportOptions struct {
	Name            string
	ProductID       string
	DefaultLocation string
	// Stamp is DTSTAMP for appointments without UpdatedAt or CreatedAt.
	// Zero means the Unix epoch, so the same rows always serialize to the
	// same bytes.
	Stamp time.Time
}

// ExportAppointments renders appts as a VCALENDAR with one VEVENT each.
// Times are written in UTC.
func ExportAppointments(appts []store.Appointment, opts ExportOptions) ([]byte, error) {
	prodID := opts.ProductID
	if prodID == "" {
		prodID = defaultProductID
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(prodID)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}

	for _, a := range appts {
		if !a.End.After(a.Start) {
			return nil, fmt.Errorf("appointment %s: end must be after start", a.ID)
		}
		ev := cal.AddEvent(a.ID.String() + "@clinicgrid")
		ev.SetDtStampTime(stampOf(a, opts.Stamp))
		ev.SetStartAt(a.Start.UTC())
		ev.SetEndAt(a.End.UTC())
		if !a.UpdatedAt.IsZero() {
			ev.SetModifiedAt(a.UpdatedAt.UTC())
		}
		summary := a.Title
		if summary == "" {
			summary = "Appointment"
		}
		ev.SetSummary(summary)
		if loc := firstNonEmpty(a.Location, opts.DefaultLocation); loc != "" {
			ev.SetLocation(loc)
		}
		if a.Notes != "" {
			ev.SetDescription(a.Notes)
		}
		ev.SetStatus(objectStatus(a.Status))
	}
	return []byte(cal.Serialize()), nil
}

// stampOf derives DTSTAMP from the row itself; the wall clock would change
// the feed's ETag on every request.
func stampOf(a store.Appointment, fallback time.Time) time.Time {
	switch {
	case !a.UpdatedAt.IsZero():
		return a.UpdatedAt.UTC()
	case !a.CreatedAt.IsZero():
		return a.CreatedAt.UTC()
	case !fallback.IsZero():
		return fallback.UTC()
	}
	return time.Unix(0, 0).UTC()
}

func objectStatus(s store.AppointmentStatus) ical.ObjectStatus {
	switch s {
	case store.StatusCancelled, store.StatusNoShow:
		return ical.ObjectStatusCancelled
	case store.StatusBooked:
		return ical.ObjectStatusTentative
	default:
		return ical.ObjectStatusConfirmed
	}
}

// ETag returns a strong entity tag for an exported payload.
func ETag(payload []byte) string {
	return fmt.Sprintf("%q", fmt.Sprintf("%x", sha256.Sum256(payload)))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
