// Package statistics aggregates trial outcomes: bootstrap confidence
// intervals for out-of-sample metrics, out-versus-in-sample regressions,
// CAPM benchmark comparisons, and CSV export of per-trial records.
package statistics

import (
	"math/rand"
	"time"

	"github.com/aristath/trellis/internal/domain"
)

// Summarize computes the cross-trial report for one batch: for each metric
// (annualized Sharpe, profit, profit net of the benchmark) an OLS regression
// of out-of-sample on in-sample values plus a bootstrap CI of the
// out-of-sample mean. Only completed trials contribute values; discarded
// trials are counted by the stage that failed them. Degenerate batches set
// per-metric error strings rather than failing the whole summary.
func Summarize(runID string, trials []domain.TrialRecord, rounds int, rng *rand.Rand) domain.BatchSummary {
	summary := domain.BatchSummary{
		RunID:           runID,
		DiscardsByStage: map[string]int{},
		GeneratedAt:     time.Now().UTC(),
	}

	var completed []domain.TrialRecord
	for _, trial := range trials {
		if trial.Completed() {
			completed = append(completed, trial)
			continue
		}
		summary.Discarded++
		stage := string(trial.FailedStage)
		if stage == "" {
			stage = string(domain.TrialStateDiscarded)
		}
		summary.DiscardsByStage[stage]++
	}
	summary.Completed = len(completed)

	summary.Sharpe = metricSummary(completed, rounds, rng,
		func(t domain.TrialRecord) float64 { return t.InSample.Sharpe },
		func(t domain.TrialRecord) float64 { return t.OutSample.Sharpe })
	summary.Profit = metricSummary(completed, rounds, rng,
		func(t domain.TrialRecord) float64 { return t.InSample.Profit },
		func(t domain.TrialRecord) float64 { return t.OutSample.Profit })
	summary.NetProfit = metricSummary(completed, rounds, rng,
		func(t domain.TrialRecord) float64 { return t.InSample.Profit - t.InSample.BenchmarkProfit },
		func(t domain.TrialRecord) float64 { return t.OutSample.Profit - t.OutSample.BenchmarkProfit })

	return summary
}

func metricSummary(
	trials []domain.TrialRecord,
	rounds int,
	rng *rand.Rand,
	in func(domain.TrialRecord) float64,
	out func(domain.TrialRecord) float64,
) domain.MetricSummary {
	ins := make([]float64, len(trials))
	outs := make([]float64, len(trials))
	for i, trial := range trials {
		ins[i] = in(trial)
		outs[i] = out(trial)
	}

	var ms domain.MetricSummary
	alpha, beta, r2, err := Regress(ins, outs)
	if err != nil {
		ms.Error = err.Error()
	} else {
		ms.Alpha, ms.Beta, ms.RSquared = alpha, beta, r2
	}

	ci, err := BootstrapCI(outs, rounds, rng)
	if err != nil {
		if ms.Error == "" {
			ms.Error = err.Error()
		}
		return ms
	}
	ms.CI = ci
	return ms
}
