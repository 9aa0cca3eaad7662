package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/trellis/internal/domain"
	"github.com/aristath/trellis/internal/modules/statistics"
	"github.com/aristath/trellis/internal/modules/trials"
)

// RunsHandlers serves the experiment run API: starting batches and reading
// stored runs, trials and summaries.
type RunsHandlers struct {
	runner   *trials.Runner
	repo     *trials.Repository
	defaults domain.ExperimentConfig
	batchCtx context.Context
	log      zerolog.Logger
}

// NewRunsHandlers creates run API handlers. batchCtx bounds batches started
// through the API; request contexts only cover validation and the run row.
func NewRunsHandlers(runner *trials.Runner, repo *trials.Repository, defaults domain.ExperimentConfig, batchCtx context.Context, log zerolog.Logger) *RunsHandlers {
	return &RunsHandlers{
		runner:   runner,
		repo:     repo,
		defaults: defaults,
		batchCtx: batchCtx,
		log:      log.With().Str("handler", "runs").Logger(),
	}
}

// StartRunResponse is the payload returned when a batch is accepted.
type StartRunResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// ListRunsResponse wraps the run list.
type ListRunsResponse struct {
	Runs  []domain.RunRecord `json:"runs"`
	Count int                `json:"count"`
}

// TrialsResponse wraps a run's trial records.
type TrialsResponse struct {
	RunID  string               `json:"run_id"`
	Trials []domain.TrialRecord `json:"trials"`
	Count  int                  `json:"count"`
}

// HandleStartRun handles POST /api/runs. The request body overrides fields
// of the configured default experiment; an empty body runs the defaults. The
// batch executes on a background goroutine and the response carries the run
// id, so callers can follow progress over SSE or poll the run.
func (h *RunsHandlers) HandleStartRun(w http.ResponseWriter, r *http.Request) {
	exp := h.defaults
	if err := json.NewDecoder(r.Body).Decode(&exp); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid experiment config: %v", err))
		return
	}

	batch, err := h.runner.Prepare(r.Context(), exp)
	if err != nil {
		h.log.Warn().Err(err).Str("experiment", exp.Name).Msg("Batch rejected")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	go func() {
		result := batch.Execute(h.batchCtx)
		h.log.Info().
			Str("run_id", result.RunID).
			Int("completed", result.Completed).
			Int("discarded", result.Discarded).
			Msg("API batch finished")
	}()

	writeJSON(w, http.StatusAccepted, StartRunResponse{RunID: batch.RunID(), Status: "started"})
}

// HandleListRuns handles GET /api/runs, newest first. ?limit= caps the result
// (default 50).
func (h *RunsHandlers) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	runs, err := h.repo.ListRuns(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []domain.RunRecord{}
	}

	writeJSON(w, http.StatusOK, ListRunsResponse{Runs: runs, Count: len(runs)})
}

// HandleGetRun handles GET /api/runs/{id}.
func (h *RunsHandlers) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := h.repo.GetRun(r.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", id).Msg("Failed to get run")
		writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// HandleListTrials handles GET /api/runs/{id}/trials.
func (h *RunsHandlers) HandleListTrials(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := h.repo.GetRun(r.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", id).Msg("Failed to get run")
		writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	records, err := h.repo.ListTrials(r.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", id).Msg("Failed to list trials")
		writeError(w, http.StatusInternalServerError, "failed to list trials")
		return
	}
	if records == nil {
		records = []domain.TrialRecord{}
	}

	writeJSON(w, http.StatusOK, TrialsResponse{RunID: id, Trials: records, Count: len(records)})
}

// HandleGetSummary handles GET /api/runs/{id}/summary. Runs still in flight
// have no summary yet and answer 404.
func (h *RunsHandlers) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	summary, err := h.repo.GetSummary(r.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", id).Msg("Failed to get summary")
		writeError(w, http.StatusInternalServerError, "failed to get summary")
		return
	}
	if summary == nil {
		writeError(w, http.StatusNotFound, "summary not found")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// HandleExportCSV handles GET /api/runs/{id}/export, streaming the run's
// trials as a CSV download.
func (h *RunsHandlers) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := h.repo.GetRun(r.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", id).Msg("Failed to get run")
		writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	records, err := h.repo.ListTrials(r.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", id).Msg("Failed to list trials")
		writeError(w, http.StatusInternalServerError, "failed to list trials")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "run-"+id+".csv"))

	// Headers are already out; a write failure here can only be logged.
	if err := statistics.WriteCSV(w, records); err != nil {
		h.log.Error().Err(err).Str("run_id", id).Msg("CSV export failed mid-stream")
	}
}
