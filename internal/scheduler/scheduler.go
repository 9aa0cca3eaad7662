// Package scheduler runs experiment batches on a cron schedule.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a named unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler manages cron-driven background jobs. A job still running when
// its next tick arrives is skipped, not stacked.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// New creates a scheduler accepting standard 5-field cron expressions and
// descriptors ("@daily", "@every 6h").
func New(log zerolog.Logger) *Scheduler {
	cronZlog := log.With().Str("component", "cron").Logger()
	cronLog := cron.PrintfLogger(&cronZlog)
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cronLog),
			cron.Recover(cronLog),
		)),
		log: log.With().Str("component", "scheduler").Logger(),
	}
}

// AddJob registers a job under the given cron spec. The context is handed to
// every invocation; cancelling it makes in-flight batches abort.
func (s *Scheduler) AddJob(ctx context.Context, spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.log.Info().Str("job", job.Name()).Msg("Running job")
		if err := job.Run(ctx); err != nil {
			s.log.Error().Err(err).Str("job", job.Name()).Msg("Job failed")
			return
		}
		s.log.Info().Str("job", job.Name()).Msg("Job completed")
	})
	if err != nil {
		return fmt.Errorf("failed to register job %s: %w", job.Name(), err)
	}

	s.log.Info().Str("schedule", spec).Str("job", job.Name()).Msg("Job registered")
	return nil
}

// Start begins dispatching jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop cancels future ticks and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("Scheduler stopped")
}
