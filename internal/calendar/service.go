package calendar

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jw6ventures/clinicgrid/internal/grid"
	"github.com/jw6ventures/clinicgrid/internal/logging"
	"github.com/jw6ventures/clinicgrid/internal/metrics"
	"github.com/jw6ventures/clinicgrid/internal/store"
)

// DateLayout is the wire and cache-key format of a displayed day.
const DateLayout = "2006-01-02"

const scopeAll = "all"

type AppointmentSource interface {
	ListRange(ctx context.Context, from, to time.Time, practitionerID *uuid.UUID) ([]store.Appointment, error)
}

type ExceptionSource interface {
	ListRange(ctx context.Context, from, to time.Time, practitionerID *uuid.UUID) ([]store.AvailabilityException, error)
}

type AvailabilitySource interface {
	ListRange(ctx context.Context, from, to time.Time, practitionerID *uuid.UUID) ([]store.AvailabilityBlock, error)
}

type PractitionerSource interface {
	List(ctx context.Context) ([]store.Practitioner, error)
	GetByID(ctx context.Context, id uuid.UUID) (*store.Practitioner, error)
}

// LayoutCache is satisfied by *cache.LayoutCache. Set must store value so
// that Get with a newer generation of the same day misses.
type LayoutCache interface {
	Generation(ctx context.Context, date string) (int64, error)
	Get(ctx context.Context, date string, gen int64, scope string, dest any) (bool, error)
	Set(ctx context.Context, date string, gen int64, scope string, value any) error
	InvalidateDay(ctx context.Context, date string) error
}

// Deps are the collaborators of a Service. Cache may be nil.
type Deps struct {
	Appointments  AppointmentSource
	Exceptions    ExceptionSource
	Availability  AvailabilitySource
	Practitioners PractitionerSource
	Cache         LayoutCache
}

// DayRequest selects the day to lay out and, optionally, one practitioner.
type DayRequest struct {
	Date           time.Time
	PractitionerID *uuid.UUID
}

// Item pairs an event with its computed block.
type Item struct {
	Event  Event      `json:"event"`
	Layout grid.Block `json:"layout"`
}

// Column is one practitioner's surface. Every column is laid out on its own.
type Column struct {
	Practitioner store.Practitioner `json:"practitioner"`
	Items        []Item             `json:"items"`
}

// DayView is everything a client needs to draw one day.
type DayView struct {
	Date          string          `json:"date"`
	Timezone      string          `json:"timezone"`
	StartHour     int             `json:"startHour"`
	EndHour       int             `json:"endHour"`
	PixelsPerHour float64         `json:"pixelsPerHour"`
	Height        float64         `json:"height"`
	Slots         []grid.TimeSlot `json:"slots"`
	Columns       []Column        `json:"columns"`
	Dropped       int             `json:"dropped"`
	Indicator     grid.Indicator  `json:"indicator"`
}

// Service builds day views.
type Service struct {
	deps   Deps
	cfg    grid.Config
	logger zerolog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(deps Deps, cfg grid.Config, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		deps:   deps,
		cfg:    cfg,
		logger: logger,
		tracer: otel.Tracer("clinicgrid.internal.calendar"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the grid settings the service lays out with.
func (s *Service) Config() grid.Config {
	return s.cfg
}

// Today is the current date in the reference timezone.
func (s *Service) Today() time.Time {
	from, _ := s.DayBounds(s.now())
	return from
}

// DayBounds returns local midnight of date and of the following day.
func (s *Service) DayBounds(date time.Time) (time.Time, time.Time) {
	d := date.In(s.cfg.Zone())
	from := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
	return from, from.AddDate(0, 0, 1)
}

// ParseDate reads a DateLayout value in the reference timezone. An empty
// string means today.
func (s *Service) ParseDate(value string) (time.Time, error) {
	if value == "" {
		return s.Today(), nil
	}
	d, err := time.ParseInLocation(DateLayout, value, s.cfg.Zone())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return d, nil
}

// Indicator places the current-time line for date.
func (s *Service) Indicator(date time.Time) grid.Indicator {
	return grid.CurrentTimeIndicator(s.now(), date, s.cfg)
}

// DayView loads, adapts and lays out one day. Cached views skip everything
// but the practitioner roster; the indicator is always recomputed.
func (s *Service) DayView(ctx context.Context, req DayRequest) (*DayView, error) {
	from, to := s.DayBounds(req.Date)
	date := from.Format(DateLayout)
	scope := scopeAll
	if req.PractitionerID != nil {
		scope = req.PractitionerID.String()
	}

	ctx, span := s.tracer.Start(ctx, "calendar.day_view", trace.WithAttributes(
		attribute.String("date", date),
		attribute.String("scope", scope),
	))
	defer span.End()

	log := logging.FromContextOr(ctx, s.logger)

	// The generation is read before any data so a concurrent mutation's
	// invalidation fences the layout built here.
	useCache := s.deps.Cache != nil
	var gen int64
	if useCache {
		var err error
		if gen, err = s.deps.Cache.Generation(ctx, date); err != nil {
			log.Warn().Err(err).Str("date", date).Msg("layout cache generation read failed")
			useCache = false
		}
	}

	practitioners, err := s.columns(ctx, req.PractitionerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "day view failed")
		return nil, err
	}
	// Roster changes (new, renamed or deactivated practitioners) never go
	// through Invalidate, so the roster is part of the cache key.
	scope += ":" + rosterFingerprint(practitioners)

	var view DayView
	if useCache {
		ok, err := s.deps.Cache.Get(ctx, date, gen, scope, &view)
		if err != nil {
			log.Warn().Err(err).Str("date", date).Msg("layout cache read failed")
		}
		if ok {
			span.SetAttributes(attribute.Bool("cache_hit", true))
			view.Indicator = s.Indicator(from)
			return &view, nil
		}
	}

	built, err := s.build(ctx, from, to, req.PractitionerID, practitioners)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "day view failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("columns", len(built.Columns)), attribute.Int("dropped", built.Dropped))

	if useCache {
		if err := s.deps.Cache.Set(ctx, date, gen, scope, built); err != nil {
			log.Warn().Err(err).Str("date", date).Msg("layout cache write failed")
		}
	}
	built.Indicator = s.Indicator(from)
	return built, nil
}

func rosterFingerprint(ps []store.Practitioner) string {
	d := xxhash.New()
	for _, p := range ps {
		_, _ = d.WriteString(p.ID.String())
		_, _ = d.WriteString(p.Name)
		_, _ = d.WriteString(p.Color)
		_, _ = d.WriteString(strconv.FormatBool(p.Active))
		_, _ = d.WriteString("\x00")
	}
	return strconv.FormatUint(d.Sum64(), 16)
}

func (s *Service) build(ctx context.Context, from, to time.Time, practitionerID *uuid.UUID, practitioners []store.Practitioner) (*DayView, error) {
	appts, err := s.deps.Appointments.ListRange(ctx, from, to, practitionerID)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	excs, err := s.deps.Exceptions.ListRange(ctx, from, to, practitionerID)
	if err != nil {
		return nil, fmt.Errorf("load availability exceptions: %w", err)
	}
	var blocks []store.AvailabilityBlock
	if s.deps.Availability != nil {
		if blocks, err = s.deps.Availability.ListRange(ctx, from, to, practitionerID); err != nil {
			return nil, fmt.Errorf("load availability: %w", err)
		}
	}

	events := append(FromAppointments(appts), FromExceptions(excs)...)
	events = append(events, FromAvailability(blocks)...)
	events, dropped := s.dropInvalid(ctx, events)

	view := &DayView{
		Date:          from.Format(DateLayout),
		Timezone:      from.Location().String(),
		StartHour:     s.cfg.StartHour,
		EndHour:       s.cfg.EndHour,
		PixelsPerHour: s.cfg.PixelsPerHour(),
		Height:        float64(s.cfg.EndHour-s.cfg.StartHour) * s.cfg.PixelsPerHour(),
		Slots:         grid.TimeSlots(s.cfg),
		Columns:       route(practitioners, events),
		Dropped:       dropped,
	}

	start := time.Now()
	for i := range view.Columns {
		col := &view.Columns[i]
		gridEvents := make([]grid.Event, len(col.Items))
		for j, it := range col.Items {
			gridEvents[j] = it.Event.GridEvent()
		}
		for j, b := range grid.Layout(gridEvents, s.cfg) {
			col.Items[j].Layout = b
		}
	}
	metrics.ObserveLayout(start, len(events))
	return view, nil
}

func (s *Service) columns(ctx context.Context, practitionerID *uuid.UUID) ([]store.Practitioner, error) {
	if practitionerID != nil {
		p, err := s.deps.Practitioners.GetByID(ctx, *practitionerID)
		if err != nil {
			return nil, fmt.Errorf("load practitioner: %w", err)
		}
		return []store.Practitioner{*p}, nil
	}
	ps, err := s.deps.Practitioners.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load practitioners: %w", err)
	}
	return ps, nil
}

func (s *Service) dropInvalid(ctx context.Context, events []Event) ([]Event, int) {
	log := logging.FromContextOr(ctx, s.logger)
	kept := events[:0]
	dropped := 0
	for _, e := range events {
		if !e.Valid() {
			dropped++
			log.Warn().Str("event_id", e.ID).Str("type", string(e.Resource.Type)).
				Time("start", e.Start).Time("end", e.End).Msg("dropping event with non-positive duration")
			continue
		}
		kept = append(kept, e)
	}
	return kept, dropped
}

// route assigns events to practitioner columns. Clinic-wide exceptions appear
// in every column; events of practitioners missing from ps get their own
// trailing column.
func route(ps []store.Practitioner, events []Event) []Column {
	cols := make([]Column, len(ps))
	index := make(map[uuid.UUID]int, len(ps))
	for i, p := range ps {
		cols[i] = Column{Practitioner: p, Items: []Item{}}
		index[p.ID] = i
	}
	for _, e := range events {
		owner := practitionerOf(e)
		if owner == nil {
			for i := range cols {
				cols[i].Items = append(cols[i].Items, Item{Event: e})
			}
			continue
		}
		i, ok := index[*owner]
		if !ok {
			i = len(cols)
			index[*owner] = i
			cols = append(cols, Column{Practitioner: store.Practitioner{ID: *owner}, Items: []Item{}})
		}
		cols[i].Items = append(cols[i].Items, Item{Event: e})
	}
	return cols
}

func practitionerOf(e Event) *uuid.UUID {
	switch {
	case e.Resource.Appointment != nil:
		return &e.Resource.Appointment.PractitionerID
	case e.Resource.Exception != nil:
		return e.Resource.Exception.PractitionerID
	case e.Resource.Availability != nil:
		return &e.Resource.Availability.PractitionerID
	case e.Resource.Practitioner != nil:
		return &e.Resource.Practitioner.ID
	}
	return nil
}

// Invalidate drops cached layouts for the day containing date.
func (s *Service) Invalidate(ctx context.Context, date time.Time) error {
	if s.deps.Cache == nil {
		return nil
	}
	from, _ := s.DayBounds(date)
	return s.deps.Cache.InvalidateDay(ctx, from.Format(DateLayout))
}

// InvalidateRange drops cached layouts for every local day [start, end) touches.
func (s *Service) InvalidateRange(ctx context.Context, start, end time.Time) error {
	day, _ := s.DayBounds(start)
	var errs []error
	for {
		if err := s.Invalidate(ctx, day); err != nil {
			errs = append(errs, err)
		}
		day = day.AddDate(0, 0, 1)
		if !day.Before(end) {
			break
		}
	}
	return errors.Join(errs...)
}
