package scheduler

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/aristath/trellis/internal/domain"
	"github.com/aristath/trellis/internal/modules/trials"
)

// BatchRunner executes one batch of trials.
type BatchRunner interface {
	RunBatch(ctx context.Context, exp domain.ExperimentConfig) (*trials.BatchResult, error)
}

// BatchJob runs a fixed experiment configuration through the trial runner.
type BatchJob struct {
	runner BatchRunner
	exp    domain.ExperimentConfig
	log    zerolog.Logger
}

// NewBatchJob creates a scheduled batch for the given experiment.
func NewBatchJob(runner BatchRunner, exp domain.ExperimentConfig, log zerolog.Logger) *BatchJob {
	return &BatchJob{
		runner: runner,
		exp:    exp,
		log:    log.With().Str("job", "experiment_batch").Logger(),
	}
}

// Name identifies the job in scheduler logs.
func (j *BatchJob) Name() string {
	return "experiment_batch:" + j.exp.Name
}

// Run executes the batch. Progress is reported through the runner's event
// manager; here only the final tally is logged.
func (j *BatchJob) Run(ctx context.Context) error {
	result, err := j.runner.RunBatch(ctx, j.exp)
	if err != nil {
		return err
	}

	j.log.Info().
		Str("run_id", result.RunID).
		Int("completed", result.Completed).
		Int("discarded", result.Discarded).
		Msg("Scheduled batch finished")
	return nil
}
