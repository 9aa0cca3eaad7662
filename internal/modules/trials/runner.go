package trials

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/trellis/internal/domain"
	"github.com/aristath/trellis/internal/events"
	"github.com/aristath/trellis/internal/modules/statistics"
)

// SectorLister resolves the full sector set when an experiment does not name
// its sectors explicitly.
type SectorLister interface {
	ListSectors(ctx context.Context) ([]string, error)
}

// BatchResult is the in-memory outcome of one batch run.
type BatchResult struct {
	RunID     string               `json:"run_id"`
	Completed int                  `json:"completed"`
	Discarded int                  `json:"discarded"`
	Trials    []domain.TrialRecord `json:"trials"`
	Summary   domain.BatchSummary  `json:"summary"`
}

// Runner executes batches of trials on a worker pool and persists every
// outcome.
type Runner struct {
	builder *Builder
	repo    *Repository
	sectors SectorLister
	events  *events.Manager
	log     zerolog.Logger
}

// NewRunner creates a batch runner. The events manager may be nil when no
// subscriber exists (batch CLI without a server).
func NewRunner(builder *Builder, repo *Repository, sectors SectorLister, em *events.Manager, log zerolog.Logger) *Runner {
	return &Runner{
		builder: builder,
		repo:    repo,
		sectors: sectors,
		events:  em,
		log:     log.With().Str("component", "trial_runner").Logger(),
	}
}

// trialJob and trialResult carry pool work items; results keep the input
// index so collection preserves seed order.
type trialJob struct {
	index int
	seed  int64
}

type trialResult struct {
	index   int
	record  domain.TrialRecord
	skipped bool
}

// PreparedBatch is a validated batch whose run row already exists. The HTTP
// API prepares a batch, responds with its run id, and executes it on a
// background goroutine; the CLI does both in one call via RunBatch.
type PreparedBatch struct {
	runner    *Runner
	exp       domain.ExperimentConfig
	runID     string
	startedAt time.Time
}

// RunID returns the run id allocated for this batch.
func (b *PreparedBatch) RunID() string {
	return b.runID
}

// RunBatch runs exp.Trials randomized trials with seeds base_seed+i, persists
// every record, and stores the cross-trial summary. Cancelling the context
// stops dispatch; in-flight trials finish and the run is marked failed.
func (r *Runner) RunBatch(ctx context.Context, exp domain.ExperimentConfig) (*BatchResult, error) {
	batch, err := r.Prepare(ctx, exp)
	if err != nil {
		return nil, err
	}
	return batch.Execute(ctx), nil
}

// Prepare validates exp, resolves its sector list, creates the run row and
// emits RunStarted. The batch has not executed yet; callers hand the run id
// out and then call Execute.
func (r *Runner) Prepare(ctx context.Context, exp domain.ExperimentConfig) (*PreparedBatch, error) {
	if exp.Trials < 1 {
		return nil, fmt.Errorf("trial count %d must be at least 1", exp.Trials)
	}
	if len(exp.Sectors) == 0 {
		sectors, err := r.sectors.ListSectors(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolving sectors: %w", err)
		}
		if len(sectors) == 0 {
			return nil, errors.New("universe catalog has no sectors")
		}
		exp.Sectors = sectors
	}

	runID := uuid.New().String()
	startedAt := time.Now().UTC()
	if err := r.repo.CreateRun(ctx, domain.RunRecord{
		ID:        runID,
		Config:    exp,
		Status:    domain.RunStatusRunning,
		StartedAt: startedAt,
	}); err != nil {
		return nil, err
	}

	r.log.Info().
		Str("run_id", runID).
		Str("experiment", exp.Name).
		Int("trials", exp.Trials).
		Int("workers", exp.Workers).
		Msg("Batch started")
	r.emit(events.RunStarted, &events.RunStartedData{
		RunID:   runID,
		Name:    exp.Name,
		Trials:  exp.Trials,
		Workers: exp.Workers,
	})

	return &PreparedBatch{runner: r, exp: exp, runID: runID, startedAt: startedAt}, nil
}

// Execute runs the prepared trials. It always produces a result: a cancelled
// context marks the run failed rather than returning an error.
func (b *PreparedBatch) Execute(ctx context.Context) *BatchResult {
	r := b.runner
	exp := b.exp
	runID := b.runID
	startedAt := b.startedAt

	records, completed, discarded := r.runTrials(ctx, exp, runID)

	// The summary RNG is seeded from the batch seed so the bootstrap is as
	// reproducible as the trials themselves.
	summary := statistics.Summarize(runID, records, exp.BootstrapRounds, rand.New(rand.NewSource(exp.BaseSeed)))
	if err := r.repo.SaveSummary(context.WithoutCancel(ctx), runID, summary); err != nil {
		r.log.Error().Err(err).Str("run_id", runID).Msg("Failed to save summary")
	}

	status := domain.RunStatusFinished
	runErr := ""
	if ctxErr := ctx.Err(); ctxErr != nil {
		status = domain.RunStatusFailed
		runErr = ctxErr.Error()
	}
	if err := r.repo.FinishRun(context.WithoutCancel(ctx), runID, status, completed, discarded, runErr); err != nil {
		r.log.Error().Err(err).Str("run_id", runID).Msg("Failed to finish run")
	}

	elapsed := time.Since(startedAt).Milliseconds()
	if status == domain.RunStatusFailed {
		r.emit(events.RunFailed, &events.RunFailedData{RunID: runID, Error: runErr})
		r.log.Warn().Str("run_id", runID).Str("error", runErr).Msg("Batch aborted")
	} else {
		r.emit(events.RunFinished, &events.RunFinishedData{
			RunID:     runID,
			Completed: completed,
			Discarded: discarded,
			ElapsedMS: elapsed,
		})
		r.emit(events.SummaryReady, &events.SummaryReadyData{RunID: runID})
		r.log.Info().
			Str("run_id", runID).
			Int("completed", completed).
			Int("discarded", discarded).
			Int64("elapsed_ms", elapsed).
			Msg("Batch finished")
	}

	return &BatchResult{
		RunID:     runID,
		Completed: completed,
		Discarded: discarded,
		Trials:    records,
		Summary:   summary,
	}
}

// runTrials fans the batch out over the worker pool and collects records in
// seed order.
func (r *Runner) runTrials(ctx context.Context, exp domain.ExperimentConfig, runID string) ([]domain.TrialRecord, int, int) {
	n := exp.Trials
	jobs := make(chan trialJob, n)
	results := make(chan trialResult, n)

	workers := exp.Workers
	if workers <= 0 {
		workers = 4
	}
	if n < workers {
		workers = n
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				// Drain without running once the batch is cancelled.
				if ctx.Err() != nil {
					results <- trialResult{index: job.index, skipped: true}
					continue
				}
				record := r.builder.Run(ctx, exp, job.seed)
				results <- trialResult{index: job.index, record: record}
			}
		}()
	}

	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		jobs <- trialJob{index: i, seed: exp.BaseSeed + int64(i)}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	reporter := newProgressReporter(r.events, runID, n)
	byIndex := make([]*domain.TrialRecord, n)
	completed, discarded := 0, 0
	for result := range results {
		if result.skipped {
			continue
		}
		record := result.record
		byIndex[result.index] = &record

		if record.Completed() {
			completed++
			r.emit(events.TrialCompleted, &events.TrialCompletedData{
				RunID:     runID,
				Seed:      record.Seed,
				Sharpe:    record.OutSample.Sharpe,
				Profit:    record.OutSample.Profit,
				ElapsedMS: record.ElapsedMS,
			})
		} else {
			discarded++
			r.emit(events.TrialDiscarded, &events.TrialDiscardedData{
				RunID:       runID,
				Seed:        record.Seed,
				FailedStage: string(record.FailedStage),
				Error:       record.Error,
			})
		}

		if err := r.repo.SaveTrial(context.WithoutCancel(ctx), runID, record); err != nil {
			r.log.Error().Err(err).Str("run_id", runID).Int64("seed", record.Seed).Msg("Failed to save trial")
		}
		reporter.Report(completed, discarded)
	}

	records := make([]domain.TrialRecord, 0, n)
	for _, record := range byIndex {
		if record != nil {
			records = append(records, *record)
		}
	}
	return records, completed, discarded
}

func (r *Runner) emit(eventType events.EventType, data events.EventData) {
	if r.events == nil {
		return
	}
	r.events.EmitTyped(eventType, "trials", data)
}
