// Package domain provides core domain models and types.
package domain

import "time"

// TradingDaysPerYear is the annualization base for daily metrics.
const TradingDaysPerYear = 252

// DefaultAnnualRiskFree is the annual risk-free rate used for excess returns.
const DefaultAnnualRiskFree = 0.05

// DailyRiskFree converts an annual risk-free rate to a daily rate.
func DailyRiskFree(annual float64) float64 {
	return annual / TradingDaysPerYear
}

// TrialState identifies the stage a trial is in (or reached before failing).
type TrialState string

const (
	TrialStateSelectSymbols     TrialState = "SELECT_SYMBOLS"
	TrialStatePerSymbolStrategy TrialState = "PER_SYMBOL_STRATEGY"
	TrialStateSectorOptimize    TrialState = "SECTOR_OPTIMIZE"
	TrialStateSectorBacktest    TrialState = "SECTOR_BACKTEST"
	TrialStatePortfolioOptimize TrialState = "PORTFOLIO_OPTIMIZE"
	TrialStateOutOfSampleEval   TrialState = "OUT_OF_SAMPLE_EVAL"
	TrialStateDone              TrialState = "DONE"
	TrialStateDiscarded         TrialState = "DISCARDED"
)

// ExperimentConfig describes one batch of randomized portfolio trials.
type ExperimentConfig struct {
	Name            string    `json:"name"`
	Cash            float64   `json:"cash"`
	NumSymbols      int       `json:"num_symbols"`
	Sectors         []string  `json:"sectors"`
	InSampleStart   time.Time `json:"in_sample_start"`
	InSampleEnd     time.Time `json:"in_sample_end"`
	OutSampleStart  time.Time `json:"out_sample_start"`
	OutSampleEnd    time.Time `json:"out_sample_end"`
	Benchmark       string    `json:"benchmark"`
	AnnualRiskFree  float64   `json:"annual_risk_free"`
	Diagonalize     bool      `json:"diagonalize"`
	BaseSeed        int64     `json:"base_seed"`
	Trials          int       `json:"trials"`
	BootstrapRounds int       `json:"bootstrap_rounds"`
	Workers         int       `json:"workers"`
}

// SectorSelection records the outcome of symbol selection for one sector.
type SectorSelection struct {
	Sector    string   `json:"sector"`
	Requested int      `json:"requested"`
	Symbols   []string `json:"symbols"`
	Removed   []string `json:"removed,omitempty"`
	Capped    bool     `json:"capped,omitempty"`
}

// RegressionStats holds CAPM-style regression metrics of a portfolio's daily
// excess returns against a benchmark's.
type RegressionStats struct {
	Alpha            float64 `json:"alpha"`
	Beta             float64 `json:"beta"`
	RSquared         float64 `json:"r_squared"`
	Treynor          float64 `json:"treynor"`
	InformationRatio float64 `json:"information_ratio"`
}

// PeriodMetrics holds the evaluation results of a portfolio over one window.
type PeriodMetrics struct {
	Sharpe          float64         `json:"sharpe"`
	Profit          float64         `json:"profit"`
	BenchmarkProfit float64         `json:"benchmark_profit"`
	Regression      RegressionStats `json:"regression"`
}

// TrialRecord is the complete outcome of one hierarchical portfolio trial.
type TrialRecord struct {
	Seed          int64                         `json:"seed"`
	State         TrialState                    `json:"state"`
	Sectors       []SectorSelection             `json:"sectors"`
	Variants      map[string]string             `json:"variants"`       // symbol -> winning strategy tag
	SectorWeights map[string]float64            `json:"sector_weights"` // sector -> weight
	SymbolWeights map[string]map[string]float64 `json:"symbol_weights"` // sector -> symbol -> weight
	InSample      PeriodMetrics                 `json:"in_sample"`
	OutSample     PeriodMetrics                 `json:"out_of_sample"`
	Error         string                        `json:"error,omitempty"`
	FailedStage   TrialState                    `json:"failed_stage,omitempty"`
	ElapsedMS     int64                         `json:"elapsed_ms"`
}

// Completed reports whether the trial ran the full pipeline.
func (t TrialRecord) Completed() bool {
	return t.State == TrialStateDone
}

// RunStatus identifies the lifecycle state of a batch run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusFinished RunStatus = "finished"
	RunStatusFailed   RunStatus = "failed"
)

// RunRecord is the persisted header for one batch of trials.
type RunRecord struct {
	ID         string           `json:"id"`
	Config     ExperimentConfig `json:"config"`
	Status     RunStatus        `json:"status"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
	Completed  int              `json:"completed"`
	Discarded  int              `json:"discarded"`
	Error      string           `json:"error,omitempty"`
}

// ConfidenceInterval is a bootstrap percentile interval for a mean.
type ConfidenceInterval struct {
	Low    float64 `json:"low"`    // 2.5th percentile
	Median float64 `json:"median"` // 50th percentile
	High   float64 `json:"high"`   // 97.5th percentile
}

// MetricSummary pairs the out-vs-in regression with the out-of-sample CI for
// one metric across a batch of trials.
type MetricSummary struct {
	Alpha    float64            `json:"alpha"`
	Beta     float64            `json:"beta"`
	RSquared float64            `json:"r_squared"`
	CI       ConfidenceInterval `json:"ci"`
	Error    string             `json:"error,omitempty"`
}

// BatchSummary aggregates a batch of completed trials.
type BatchSummary struct {
	RunID           string         `json:"run_id"`
	Completed       int            `json:"completed"`
	Discarded       int            `json:"discarded"`
	DiscardsByStage map[string]int `json:"discards_by_stage,omitempty"`
	Sharpe          MetricSummary  `json:"sharpe"`
	Profit          MetricSummary  `json:"profit"`
	NetProfit       MetricSummary  `json:"net_profit"` // profit minus benchmark profit
	GeneratedAt     time.Time      `json:"generated_at"`
}
