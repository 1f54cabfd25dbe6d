package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jw6ventures/clinicgrid/internal/store"
)

var jst = time.FixedZone("JST", 9*60*60)

type fakeRules struct {
	rules []store.AvailabilityRule
	err   error
}

func (f fakeRules) List(context.Context) ([]store.AvailabilityRule, error) {
	return f.rules, f.err
}

type replaceCall struct {
	practitioner uuid.UUID
	from, to     time.Time
	blocks       []store.AvailabilityBlock
}

type fakeBlocks struct {
	calls []replaceCall
	err   error
}

func (f *fakeBlocks) ReplaceRange(_ context.Context, pid uuid.UUID, from, to time.Time, blocks []store.AvailabilityBlock) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, replaceCall{pid, from, to, blocks})
	return nil
}

type fakeInvalidator struct {
	start, end time.Time
	calls      int
}

func (f *fakeInvalidator) InvalidateRange(_ context.Context, start, end time.Time) error {
	f.calls++
	f.start, f.end = start, end
	return nil
}

func newMaterializer(rules fakeRules, blocks *fakeBlocks, inv *fakeInvalidator) *Materializer {
	m := NewMaterializer(rules, blocks, inv, jst, 7, zerolog.Nop())
	m.now = func() time.Time { return time.Date(2024, 3, 4, 15, 30, 0, 0, jst) }
	return m
}

func TestMaterializeGroupsRulesPerPractitioner(t *testing.T) {
	ito, kato := uuid.New(), uuid.New()
	validFrom := time.Date(2024, 1, 1, 0, 0, 0, 0, jst)
	rules := fakeRules{rules: []store.AvailabilityRule{
		{ID: uuid.New(), PractitionerID: ito, RRule: "FREQ=WEEKLY;BYDAY=MO", StartTime: "09:00", EndTime: "12:00", ValidFrom: validFrom},
		{ID: uuid.New(), PractitionerID: ito, RRule: "FREQ=WEEKLY;BYDAY=MO", StartTime: "14:00", EndTime: "18:00", ValidFrom: validFrom},
		{ID: uuid.New(), PractitionerID: kato, RRule: "FREQ=DAILY", StartTime: "10:00", EndTime: "16:00", ValidFrom: validFrom},
	}}
	blocks := &fakeBlocks{}
	inv := &fakeInvalidator{}

	res, err := newMaterializer(rules, blocks, inv).Materialize(context.Background())
	require.NoError(t, err)

	from := time.Date(2024, 3, 4, 0, 0, 0, 0, jst)
	assert.Equal(t, from, res.From)
	assert.Equal(t, from.AddDate(0, 0, 7), res.To)
	assert.Equal(t, 3, res.Rules)
	assert.Equal(t, 2, res.Practitioners)
	assert.Equal(t, 2+7, res.Blocks)

	require.Len(t, blocks.calls, 2)
	assert.Equal(t, ito, blocks.calls[0].practitioner)
	assert.Len(t, blocks.calls[0].blocks, 2)
	assert.Equal(t, kato, blocks.calls[1].practitioner)
	assert.Len(t, blocks.calls[1].blocks, 7)

	assert.Equal(t, 1, inv.calls)
	assert.Equal(t, from, inv.start)
}

func TestMaterializeSkipsBrokenRules(t *testing.T) {
	ito, kato := uuid.New(), uuid.New()
	validFrom := time.Date(2024, 1, 1, 0, 0, 0, 0, jst)
	rules := fakeRules{rules: []store.AvailabilityRule{
		{ID: uuid.New(), PractitionerID: ito, RRule: "FREQ=DAILY", StartTime: "09:00", EndTime: "10:00", ValidFrom: validFrom},
		{ID: uuid.New(), PractitionerID: ito, RRule: "nonsense", StartTime: "11:00", EndTime: "12:00", ValidFrom: validFrom},
		{ID: uuid.New(), PractitionerID: kato, RRule: "FREQ=DAILY", StartTime: "09:00", EndTime: "10:00", ValidFrom: validFrom},
	}}
	blocks := &fakeBlocks{}

	res, err := newMaterializer(rules, blocks, &fakeInvalidator{}).Materialize(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, res.Practitioners)
	require.Len(t, blocks.calls, 1)
	assert.Equal(t, kato, blocks.calls[0].practitioner)
}

func TestMaterializeListError(t *testing.T) {
	boom := errors.New("db down")
	_, err := newMaterializer(fakeRules{err: boom}, &fakeBlocks{}, nil).Materialize(context.Background())
	assert.ErrorIs(t, err, boom)
}

type countingJob struct {
	runs atomic.Int32
	err  error
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	return j.err
}

func TestSchedulerLifecycle(t *testing.T) {
	s := NewScheduler(jst, zerolog.Nop())
	job := &countingJob{}

	require.NoError(t, s.Add("0 3 * * *", job))
	assert.Error(t, s.Add("every day", job))

	require.NoError(t, s.Start())
	assert.ErrorIs(t, s.Start(), ErrSchedulerStarted)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
	assert.ErrorIs(t, s.Start(), ErrSchedulerStopped)
}

type ctxJob struct {
	err error
}

func (j *ctxJob) Name() string { return "ctx" }

func (j *ctxJob) Run(ctx context.Context) error {
	j.err = ctx.Err()
	return j.err
}

func TestSchedulerStopBeforeStartKeepsContext(t *testing.T) {
	s := NewScheduler(jst, zerolog.Nop())
	require.NoError(t, s.Stop(context.Background()))

	job := &ctxJob{}
	require.NoError(t, s.RunNow(job))
	assert.NoError(t, job.err)

	require.NoError(t, s.Start())
	require.NoError(t, s.Stop(context.Background()))
	assert.ErrorIs(t, s.RunNow(job), context.Canceled)
}

func TestSchedulerRunNow(t *testing.T) {
	s := NewScheduler(nil, zerolog.Nop())
	job := &countingJob{err: errors.New("failed")}

	assert.Error(t, s.RunNow(job))
	assert.Equal(t, int32(1), job.runs.Load())
}

func TestCronLoggerAcceptsKeyValues(t *testing.T) {
	l := cronLogger{logger: zerolog.Nop()}
	l.Info("run", "entry", 1, "now", time.Now())
	l.Error(errors.New("x"), "panic", "entry", 1)
}
