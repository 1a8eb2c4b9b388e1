// Package scheduler runs the background jobs: generating each day's task
// instances at midnight and interrupting stale claims.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Jobs is the subset of the task service the scheduler drives.
type Jobs interface {
	Today() string
	EnsureInstancesFor(ctx context.Context, workDate string) (int, error)
	SweepStale(ctx context.Context) ([]int64, error)
}

type Scheduler struct {
	cron           *cron.Cron
	jobs           Jobs
	log            *zap.Logger
	sweepInterval  time.Duration
	timeout        time.Duration
	runImmediately bool
}

// New creates a scheduler in the location's time zone. A zero sweepInterval
// disables the stale-claim sweep.
func New(jobs Jobs, loc *time.Location, sweepInterval time.Duration, runImmediately bool, log *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		cron:           cron.New(cron.WithLocation(loc)),
		jobs:           jobs,
		log:            log,
		sweepInterval:  sweepInterval,
		timeout:        time.Minute,
		runImmediately: runImmediately,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 0 * * *", s.RunGeneration); err != nil {
		return fmt.Errorf("schedule generation: %w", err)
	}
	if s.sweepInterval > 0 {
		spec := fmt.Sprintf("@every %s", s.sweepInterval)
		if _, err := s.cron.AddFunc(spec, s.RunSweep); err != nil {
			return fmt.Errorf("schedule sweep: %w", err)
		}
	}
	s.cron.Start()
	s.log.Info("scheduler started", zap.Int("jobs", len(s.cron.Entries())), zap.Duration("sweep_interval", s.sweepInterval))

	if s.runImmediately {
		s.RunGeneration()
	}
	return nil
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// Entries returns the number of registered jobs.
func (s *Scheduler) Entries() int { return len(s.cron.Entries()) }

// RunGeneration creates today's instances.
func (s *Scheduler) RunGeneration() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	day := s.jobs.Today()
	n, err := s.jobs.EnsureInstancesFor(ctx, day)
	if err != nil {
		s.log.Error("daily generation failed", zap.String("work_date", day), zap.Error(err))
		return
	}
	s.log.Info("daily generation", zap.String("work_date", day), zap.Int("created", n))
}

// RunSweep interrupts claims older than the configured TTL.
func (s *Scheduler) RunSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	ids, err := s.jobs.SweepStale(ctx)
	if err != nil {
		s.log.Error("stale sweep failed", zap.Error(err))
		return
	}
	if len(ids) > 0 {
		s.log.Info("stale sweep", zap.Int("interrupted", len(ids)))
	}
}
