// Package scheduler runs named background jobs on a daily clock, such as the
// automatic daily closing export.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// Job is one unit of scheduled work. The context is canceled when the job
// exceeds its timeout or the scheduler stops.
type Job func(ctx context.Context) error

type Option func(*Scheduler)

// WithLocation sets the clock jobs are scheduled against. Default is time.Local.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) { s.loc = loc }
}

// WithJobTimeout bounds a single job run.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.timeout = d }
}

type Scheduler struct {
	cron    *gocron.Scheduler
	logger  zerolog.Logger
	loc     *time.Location
	timeout time.Duration

	mu     sync.Mutex
	jobs   map[string]Job
	ctx    context.Context
	cancel context.CancelFunc
}

func New(logger zerolog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		logger:  logger.With().Str("component", "scheduler").Logger(),
		loc:     time.Local,
		timeout: 5 * time.Minute,
		jobs:    make(map[string]Job),
	}
	for _, o := range opts {
		o(s)
	}
	s.cron = gocron.NewScheduler(s.loc)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Daily registers job to run every day at the given "HH:MM".
func (s *Scheduler) Daily(at, name string, job Job) error {
	if _, err := time.Parse("15:04", at); err != nil {
		return fmt.Errorf("job %s: invalid time %q, expected HH:MM", name, at)
	}
	if job == nil {
		return fmt.Errorf("job %s: nil job", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[name]; dup {
		return fmt.Errorf("job %s already registered", name)
	}
	if _, err := s.cron.Every(1).Day().At(at).Tag(name).Do(func() { s.run(name, job) }); err != nil {
		return fmt.Errorf("schedule job %s: %w", name, err)
	}
	s.jobs[name] = job
	s.logger.Info().Str("job", name).Str("at", at).Msg("job scheduled")
	return nil
}

// RunNow runs a registered job synchronously, outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s not registered", name)
	}
	return s.run(name, job)
}

// NextRun reports when the named job fires next. It is zero until Start.
func (s *Scheduler) NextRun(name string) time.Time {
	jobs, err := s.cron.FindJobsByTag(name)
	if err != nil || len(jobs) == 0 {
		return time.Time{}
	}
	return jobs[0].NextRun()
}

func (s *Scheduler) Start() {
	s.cron.StartAsync()
	s.logger.Info().Int("jobs", len(s.jobs)).Msg("scheduler started")
}

// Stop halts the clock and cancels running jobs.
func (s *Scheduler) Stop() {
	s.cancel()
	s.cron.Stop()
	s.logger.Info().Msg("scheduler stopped")
}

func (s *Scheduler) run(name string, job Job) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := job(ctx)
	if err != nil {
		s.logger.Error().Err(err).Str("job", name).Dur("duration", time.Since(start)).Msg("job failed")
		return err
	}
	s.logger.Info().Str("job", name).Dur("duration", time.Since(start)).Msg("job finished")
	return nil
}
