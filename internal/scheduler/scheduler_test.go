package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/trellis/internal/domain"
	"github.com/aristath/trellis/internal/modules/trials"
	testingpkg "github.com/aristath/trellis/internal/testing"
)

type gatedJob struct {
	gate     chan struct{}
	started  atomic.Int32
	finished atomic.Int32
}

func (j *gatedJob) Name() string { return "gated" }

func (j *gatedJob) Run(ctx context.Context) error {
	j.started.Add(1)
	<-j.gate
	j.finished.Add(1)
	return nil
}

func TestAddJobRejectsInvalidSpec(t *testing.T) {
	s := New(zerolog.Nop())

	err := s.AddJob(context.Background(), "not a cron spec", &gatedJob{gate: make(chan struct{})})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gated")
}

func TestOverlappingTicksAreSkipped(t *testing.T) {
	s := New(zerolog.Nop())
	job := &gatedJob{gate: make(chan struct{})}

	require.NoError(t, s.AddJob(context.Background(), "@every 10ms", job))
	s.Start()

	// Several ticks pass while the first invocation blocks; they must be
	// skipped rather than stacked.
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(1), job.started.Load())

	close(job.gate)
	s.Stop()

	assert.Equal(t, job.started.Load(), job.finished.Load())
}

type fakeRunner struct {
	exp    domain.ExperimentConfig
	result *trials.BatchResult
	err    error
	calls  atomic.Int32
}

func (r *fakeRunner) RunBatch(ctx context.Context, exp domain.ExperimentConfig) (*trials.BatchResult, error) {
	r.calls.Add(1)
	r.exp = exp
	if r.err != nil {
		return nil, r.err
	}
	return r.result, nil
}

func TestBatchJobRunsExperiment(t *testing.T) {
	exp := testingpkg.NewExperimentFixture()
	runner := &fakeRunner{result: &trials.BatchResult{RunID: "run-1", Completed: 4}}
	job := NewBatchJob(runner, exp, zerolog.Nop())

	assert.Equal(t, "experiment_batch:fixture", job.Name())
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, int32(1), runner.calls.Load())
	assert.Equal(t, "fixture", runner.exp.Name)
}

func TestBatchJobPropagatesRunnerError(t *testing.T) {
	runner := &fakeRunner{err: errors.New("universe catalog has no sectors")}
	job := NewBatchJob(runner, testingpkg.NewExperimentFixture(), zerolog.Nop())

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no sectors")
}
