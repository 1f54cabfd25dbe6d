package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/jw6ventures/clinicgrid/internal/metrics"
)

// Job is a unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

var (
	ErrSchedulerStarted = errors.New("jobs: scheduler already started")
	ErrSchedulerStopped = errors.New("jobs: scheduler stopped")
)

// Scheduler runs jobs on cron specs. Add jobs, Start it once and Stop it on
// shutdown; a stopped scheduler cannot be restarted.
type Scheduler struct {
	cron   *cron.Cron
	logger zerolog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	stopped bool
}

func NewScheduler(loc *time.Location, logger zerolog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add registers job on a standard five-field cron spec.
func (s *Scheduler) Add(spec string, job Job) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("jobs: invalid schedule %q for %s: %w", spec, job.Name(), err)
	}
	_, err := s.cron.AddFunc(spec, func() { s.RunNow(job) })
	if err != nil {
		return fmt.Errorf("jobs: schedule %s: %w", job.Name(), err)
	}
	s.logger.Info().Str("job", job.Name()).Str("spec", spec).Msg("job scheduled")
	return nil
}

// RunNow executes job synchronously with the scheduler's context.
func (s *Scheduler) RunNow(job Job) error {
	start := time.Now()
	err := job.Run(s.ctx)
	metrics.JobRun(job.Name(), err)
	evt := s.logger.Info()
	if err != nil {
		evt = s.logger.Error().Err(err)
	}
	evt.Str("job", job.Name()).Dur("duration", time.Since(start)).Msg("job finished")
	return err
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrSchedulerStopped
	}
	if s.started {
		return ErrSchedulerStarted
	}
	s.started = true
	s.cron.Start()
	return nil
}

// Stop prevents new runs, cancels the context handed to running jobs and
// waits for them to return or for ctx to expire. Stopping a scheduler that
// was never started is a no-op.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false
	s.stopped = true
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
