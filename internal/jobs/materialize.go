package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jw6ventures/clinicgrid/internal/ics"
	"github.com/jw6ventures/clinicgrid/internal/store"
)

type RuleSource interface {
	List(ctx context.Context) ([]store.AvailabilityRule, error)
}

type BlockWriter interface {
	ReplaceRange(ctx context.Context, practitionerID uuid.UUID, from, to time.Time, blocks []store.AvailabilityBlock) error
}

// Invalidator drops cached layouts; satisfied by *calendar.Service.
type Invalidator interface {
	InvalidateRange(ctx context.Context, start, end time.Time) error
}

// Result summarises one materialisation pass.
type Result struct {
	From          time.Time
	To            time.Time
	Rules         int
	Practitioners int
	Blocks        int
	Truncated     int
}

// Materializer expands availability rules into concrete blocks for the next
// HorizonDays days starting today.
type Materializer struct {
	rules       RuleSource
	blocks      BlockWriter
	invalidator Invalidator
	loc         *time.Location
	horizonDays int
	logger      zerolog.Logger
	now         func() time.Time
}

func NewMaterializer(rules RuleSource, blocks BlockWriter, invalidator Invalidator, loc *time.Location, horizonDays int, logger zerolog.Logger) *Materializer {
	if loc == nil {
		loc = time.UTC
	}
	if horizonDays <= 0 {
		horizonDays = 28
	}
	return &Materializer{
		rules:       rules,
		blocks:      blocks,
		invalidator: invalidator,
		loc:         loc,
		horizonDays: horizonDays,
		logger:      logger,
		now:         time.Now,
	}
}

func (m *Materializer) Name() string { return "materialize_availability" }

// Run implements Job.
func (m *Materializer) Run(ctx context.Context) error {
	_, err := m.Materialize(ctx)
	return err
}

// Materialize replaces every practitioner's blocks in the horizon. A rule
// that fails to expand is skipped and reported; its practitioner keeps the
// blocks it had.
func (m *Materializer) Materialize(ctx context.Context) (Result, error) {
	n := m.now().In(m.loc)
	from := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, m.loc)
	to := from.AddDate(0, 0, m.horizonDays)
	res := Result{From: from, To: to}

	rules, err := m.rules.List(ctx)
	if err != nil {
		return res, fmt.Errorf("list availability rules: %w", err)
	}
	res.Rules = len(rules)

	var errs []error
	byPractitioner := make(map[uuid.UUID][]store.AvailabilityBlock)
	failed := make(map[uuid.UUID]bool)
	var order []uuid.UUID
	for _, rule := range rules {
		if _, seen := byPractitioner[rule.PractitionerID]; !seen && !failed[rule.PractitionerID] {
			order = append(order, rule.PractitionerID)
		}
		blocks, truncated, err := ics.ExpandRule(rule, from, to, m.loc)
		if err != nil {
			m.logger.Error().Err(err).Str("rule_id", rule.ID.String()).Msg("skipping availability rule")
			errs = append(errs, err)
			failed[rule.PractitionerID] = true
			continue
		}
		if truncated {
			res.Truncated++
			m.logger.Warn().Str("rule_id", rule.ID.String()).Int("cap", ics.MaxOccurrencesPerRule).Msg("availability rule hit occurrence cap")
		}
		byPractitioner[rule.PractitionerID] = append(byPractitioner[rule.PractitionerID], blocks...)
	}

	for _, pid := range order {
		if failed[pid] {
			continue
		}
		blocks := byPractitioner[pid]
		if err := m.blocks.ReplaceRange(ctx, pid, from, to, blocks); err != nil {
			m.logger.Error().Err(err).Str("practitioner_id", pid.String()).Msg("replace availability blocks failed")
			errs = append(errs, err)
			continue
		}
		res.Practitioners++
		res.Blocks += len(blocks)
	}

	if m.invalidator != nil && res.Practitioners > 0 {
		if err := m.invalidator.InvalidateRange(ctx, from, to); err != nil {
			m.logger.Warn().Err(err).Msg("invalidate cached layouts after materialize")
		}
	}

	m.logger.Info().
		Time("from", from).Time("to", to).
		Int("rules", res.Rules).Int("practitioners", res.Practitioners).Int("blocks", res.Blocks).
		Msg("availability materialized")
	return res, errors.Join(errs...)
}
