package statistics

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/trellis/internal/domain"
	testingpkg "github.com/aristath/trellis/internal/testing"
)

func TestSummarizeMixedBatch(t *testing.T) {
	trials := []domain.TrialRecord{
		testingpkg.NewCompletedTrialFixture(1),
		testingpkg.NewCompletedTrialFixture(2),
		testingpkg.NewCompletedTrialFixture(3),
		testingpkg.NewDiscardedTrialFixture(4, domain.TrialStateSectorOptimize, "singular covariance"),
		testingpkg.NewDiscardedTrialFixture(5, "", "worker crashed"),
	}

	summary := Summarize("run-1", trials, 200, rand.New(rand.NewSource(1)))

	assert.Equal(t, "run-1", summary.RunID)
	assert.Equal(t, 3, summary.Completed)
	assert.Equal(t, 2, summary.Discarded)
	assert.Equal(t, map[string]int{
		"SECTOR_OPTIMIZE": 1,
		"DISCARDED":       1,
	}, summary.DiscardsByStage)

	// The fixtures place out-of-sample metrics on an exact line in the
	// in-sample ones, so the regressions recover the line.
	require.Empty(t, summary.Sharpe.Error)
	assert.InDelta(t, 1.6, summary.Sharpe.Beta, 1e-9)
	assert.InDelta(t, -1.16, summary.Sharpe.Alpha, 1e-9)
	assert.InDelta(t, 1.0, summary.Sharpe.RSquared, 1e-9)

	require.Empty(t, summary.Profit.Error)
	assert.InDelta(t, 0.75, summary.Profit.Beta, 1e-9)
	assert.InDelta(t, -95_000, summary.Profit.Alpha, 1e-6)

	require.Empty(t, summary.NetProfit.Error)
	assert.InDelta(t, 0.75, summary.NetProfit.Beta, 1e-9)
	assert.InDelta(t, -42_500, summary.NetProfit.Alpha, 1e-6)

	// Out-of-sample Sharpe values are 0.68, 0.76 and 0.84; resampled means
	// stay inside that range.
	assert.Greater(t, summary.Sharpe.CI.Low, 0.67)
	assert.Less(t, summary.Sharpe.CI.High, 0.85)
	assert.LessOrEqual(t, summary.Sharpe.CI.Low, summary.Sharpe.CI.Median)
	assert.LessOrEqual(t, summary.Sharpe.CI.Median, summary.Sharpe.CI.High)
	assert.InDelta(t, 0.76, summary.Sharpe.CI.Median, 0.08)

	assert.WithinDuration(t, time.Now(), summary.GeneratedAt, time.Minute)
	assert.Equal(t, time.UTC, summary.GeneratedAt.Location())
}

func TestSummarizeEmptyBatch(t *testing.T) {
	summary := Summarize("run-2", nil, 200, rand.New(rand.NewSource(1)))

	assert.Zero(t, summary.Completed)
	assert.Zero(t, summary.Discarded)
	assert.Empty(t, summary.DiscardsByStage)

	for _, ms := range []domain.MetricSummary{summary.Sharpe, summary.Profit, summary.NetProfit} {
		assert.Contains(t, ms.Error, "at least 2")
		assert.Equal(t, domain.ConfidenceInterval{}, ms.CI)
	}
}

func TestSummarizeSingleTrialCannotRegress(t *testing.T) {
	trials := []domain.TrialRecord{testingpkg.NewCompletedTrialFixture(1)}

	summary := Summarize("run-3", trials, 200, rand.New(rand.NewSource(1)))

	assert.Equal(t, 1, summary.Completed)
	assert.NotEmpty(t, summary.Sharpe.Error)
	assert.Equal(t, domain.ConfidenceInterval{}, summary.Sharpe.CI)
}

func TestSummarizeIdenticalTrialsStillBootstraps(t *testing.T) {
	// Same seed twice: the in-sample values are identical, so the regression
	// is degenerate, but the bootstrap over the (constant) out-of-sample
	// values still produces an interval.
	trial := testingpkg.NewCompletedTrialFixture(3)
	trials := []domain.TrialRecord{trial, trial}

	summary := Summarize("run-4", trials, 200, rand.New(rand.NewSource(1)))

	assert.Equal(t, 2, summary.Completed)
	assert.Contains(t, summary.Sharpe.Error, "identical")
	assert.Equal(t, trial.OutSample.Sharpe, summary.Sharpe.CI.Low)
	assert.Equal(t, trial.OutSample.Sharpe, summary.Sharpe.CI.Median)
	assert.Equal(t, trial.OutSample.Sharpe, summary.Sharpe.CI.High)
}

func TestSummarizeDeterministicForSeed(t *testing.T) {
	trials := []domain.TrialRecord{
		testingpkg.NewCompletedTrialFixture(1),
		testingpkg.NewCompletedTrialFixture(2),
		testingpkg.NewCompletedTrialFixture(3),
		testingpkg.NewCompletedTrialFixture(4),
	}

	first := Summarize("run-5", trials, 300, rand.New(rand.NewSource(7)))
	second := Summarize("run-5", trials, 300, rand.New(rand.NewSource(7)))

	assert.Equal(t, first.Sharpe, second.Sharpe)
	assert.Equal(t, first.Profit, second.Profit)
	assert.Equal(t, first.NetProfit, second.NetProfit)
}
