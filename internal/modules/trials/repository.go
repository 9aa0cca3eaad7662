package trials

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/trellis/internal/database"
	"github.com/aristath/trellis/internal/domain"
)

// Repository persists runs, their trials, and cached summaries on the results
// database.
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository creates a results repository.
func NewRepository(db *database.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "results").Logger(),
	}
}

// CreateRun inserts a new run header.
func (r *Repository) CreateRun(ctx context.Context, run domain.RunRecord) error {
	configJSON, err := json.Marshal(run.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal run config: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO runs (id, name, config, status, started_at, completed, discarded)
		 VALUES (?, ?, ?, ?, ?, 0, 0)`,
		run.ID, run.Config.Name, string(configJSON), string(run.Status), run.StartedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun records the terminal status and counts of a run.
func (r *Repository) FinishRun(ctx context.Context, id string, status domain.RunStatus, completed, discarded int, runErr string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, completed = ?, discarded = ?, error = NULLIF(?, '')
		 WHERE id = ?`,
		string(status), time.Now().Unix(), completed, discarded, runErr, id)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// GetRun returns one run header, or nil when absent.
func (r *Repository) GetRun(ctx context.Context, id string) (*domain.RunRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, config, status, started_at, finished_at, completed, discarded, COALESCE(error, '')
		 FROM runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return run, nil
}

// ListRuns returns run headers newest first. limit <= 0 returns all.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	query := `SELECT id, config, status, started_at, finished_at, completed, discarded, COALESCE(error, '')
	          FROM runs ORDER BY started_at DESC, id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// scanTarget abstracts sql.Row and sql.Rows for the shared run scanner.
type scanTarget interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanTarget) (*domain.RunRecord, error) {
	var (
		run        domain.RunRecord
		configJSON string
		status     string
		startedAt  int64
		finishedAt sql.NullInt64
	)
	if err := row.Scan(&run.ID, &configJSON, &status, &startedAt, &finishedAt,
		&run.Completed, &run.Discarded, &run.Error); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	if err := json.Unmarshal([]byte(configJSON), &run.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config for run %s: %w", run.ID, err)
	}
	run.Status = domain.RunStatus(status)
	run.StartedAt = time.Unix(startedAt, 0).UTC()
	if finishedAt.Valid {
		finished := time.Unix(finishedAt.Int64, 0).UTC()
		run.FinishedAt = &finished
	}
	return &run, nil
}

// SaveTrial persists one trial record under its run.
func (r *Repository) SaveTrial(ctx context.Context, runID string, record domain.TrialRecord) error {
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal trial record: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO trials (run_id, seed, state, record, error, created_at)
		 VALUES (?, ?, ?, ?, NULLIF(?, ''), ?)
		 ON CONFLICT(run_id, seed) DO UPDATE SET
		   state = excluded.state, record = excluded.record, error = excluded.error`,
		runID, record.Seed, string(record.State), string(recordJSON), record.Error, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to insert trial %d of run %s: %w", record.Seed, runID, err)
	}
	return nil
}

// SaveTrials persists a batch of trial records in one transaction.
func (r *Repository) SaveTrials(ctx context.Context, runID string, records []domain.TrialRecord) error {
	return database.WithTransaction(r.db.Conn(), func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO trials (run_id, seed, state, record, error, created_at)
			 VALUES (?, ?, ?, ?, NULLIF(?, ''), ?)
			 ON CONFLICT(run_id, seed) DO UPDATE SET
			   state = excluded.state, record = excluded.record, error = excluded.error`)
		if err != nil {
			return fmt.Errorf("failed to prepare trial insert: %w", err)
		}
		defer stmt.Close()

		now := time.Now().Unix()
		for _, record := range records {
			recordJSON, err := json.Marshal(record)
			if err != nil {
				return fmt.Errorf("failed to marshal trial record: %w", err)
			}
			if _, err := stmt.ExecContext(ctx, runID, record.Seed, string(record.State),
				string(recordJSON), record.Error, now); err != nil {
				return fmt.Errorf("failed to insert trial %d: %w", record.Seed, err)
			}
		}
		return nil
	})
}

// ListTrials returns every trial of a run ordered by seed.
func (r *Repository) ListTrials(ctx context.Context, runID string) ([]domain.TrialRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT record FROM trials WHERE run_id = ? ORDER BY seed", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trials for run %s: %w", runID, err)
	}
	defer rows.Close()

	var records []domain.TrialRecord
	for rows.Next() {
		var recordJSON string
		if err := rows.Scan(&recordJSON); err != nil {
			return nil, fmt.Errorf("failed to scan trial: %w", err)
		}
		var record domain.TrialRecord
		if err := json.Unmarshal([]byte(recordJSON), &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trial record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// SaveSummary caches the batch summary of a run, replacing any previous one.
func (r *Repository) SaveSummary(ctx context.Context, runID string, summary domain.BatchSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO summaries (run_id, summary, generated_at) VALUES (?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET
		   summary = excluded.summary, generated_at = excluded.generated_at`,
		runID, string(summaryJSON), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save summary for run %s: %w", runID, err)
	}
	return nil
}

// GetSummary returns the cached summary of a run, or nil when absent.
func (r *Repository) GetSummary(ctx context.Context, runID string) (*domain.BatchSummary, error) {
	var summaryJSON string
	err := r.db.QueryRowContext(ctx,
		"SELECT summary FROM summaries WHERE run_id = ?", runID).Scan(&summaryJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query summary for run %s: %w", runID, err)
	}

	var summary domain.BatchSummary
	if err := json.Unmarshal([]byte(summaryJSON), &summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary for run %s: %w", runID, err)
	}
	return &summary, nil
}
