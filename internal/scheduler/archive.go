package scheduler

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/aristath/trellis/internal/modules/archive"
)

// ArchiveJob uploads a results snapshot on schedule and rotates out archives
// past the retention window.
type ArchiveJob struct {
	archiver      *archive.Service
	retentionDays int
	log           zerolog.Logger
}

// NewArchiveJob creates a scheduled archive with the given retention. A
// retention of zero keeps every archive.
func NewArchiveJob(archiver *archive.Service, retentionDays int, log zerolog.Logger) *ArchiveJob {
	return &ArchiveJob{
		archiver:      archiver,
		retentionDays: retentionDays,
		log:           log.With().Str("job", "archive").Logger(),
	}
}

// Name identifies the job in scheduler logs.
func (j *ArchiveJob) Name() string {
	return "results_archive"
}

// Run archives the results database, then prunes expired archives. A failed
// rotation is logged but does not fail the job: the upload already succeeded.
func (j *ArchiveJob) Run(ctx context.Context) error {
	result, err := j.archiver.Archive(ctx)
	if err != nil {
		return err
	}

	j.log.Info().
		Str("stamp", result.Stamp).
		Int("runs", result.Runs).
		Int64("bytes", result.Bytes).
		Msg("Scheduled archive uploaded")

	if err := j.archiver.Rotate(ctx, j.retentionDays); err != nil {
		j.log.Error().Err(err).Msg("Archive rotation failed")
	}
	return nil
}
