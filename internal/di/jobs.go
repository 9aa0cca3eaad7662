// Package di provides dependency injection for scheduled jobs.
package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/trellis/internal/config"
	"github.com/aristath/trellis/internal/scheduler"
)

// archiveSchedule is when the results archive runs. Batches scheduled via
// SCHEDULE_SPEC typically finish well within a day, so a nightly archive
// captures every completed run.
const archiveSchedule = "@daily"

// JobInstances holds the scheduled job instances for direct access in tests
// and manual triggers. Fields are nil when the job is not configured.
type JobInstances struct {
	Batch   *scheduler.BatchJob
	Archive *scheduler.ArchiveJob
}

// Any reports whether at least one job was registered; the scheduler is only
// started when there is something for it to run.
func (j *JobInstances) Any() bool {
	return j.Batch != nil || j.Archive != nil
}

// RegisterJobs wires scheduled jobs onto the container's scheduler. The
// context is handed to every job invocation; cancelling it aborts in-flight
// batches on shutdown.
func RegisterJobs(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	instances := &JobInstances{}

	// Scheduled experiment batches (SCHEDULE_SPEC env, e.g. "@daily")
	if cfg.ScheduleSpec != "" {
		batch := scheduler.NewBatchJob(container.Runner, cfg.Experiment, log)
		if err := container.Scheduler.AddJob(ctx, cfg.ScheduleSpec, batch); err != nil {
			return nil, fmt.Errorf("failed to register batch job: %w", err)
		}
		instances.Batch = batch
	}

	// Nightly results archive with retention-based rotation
	if container.Archiver != nil {
		archiveJob := scheduler.NewArchiveJob(container.Archiver, cfg.Archive.RetentionDays, log)
		if err := container.Scheduler.AddJob(ctx, archiveSchedule, archiveJob); err != nil {
			return nil, fmt.Errorf("failed to register archive job: %w", err)
		}
		instances.Archive = archiveJob
	}

	return instances, nil
}
