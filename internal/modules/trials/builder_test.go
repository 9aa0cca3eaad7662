package trials

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/trellis/internal/domain"
	"github.com/aristath/trellis/internal/modules/backtest"
	"github.com/aristath/trellis/internal/modules/optimization"
	testingpkg "github.com/aristath/trellis/internal/testing"
)

func newFixtureBuilder(provider domain.PriceSeriesProvider) *Builder {
	return NewBuilder(provider, optimization.NewOptimizer(zerolog.Nop()), zerolog.Nop())
}

func weightSum(weights map[string]float64) float64 {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	return sum
}

func TestTrialCompletesOnFixtureData(t *testing.T) {
	builder := newFixtureBuilder(testingpkg.NewDefaultFixtureProvider())
	exp := testingpkg.NewExperimentFixture()

	record := builder.Run(context.Background(), exp, 1)

	require.Equal(t, domain.TrialStateDone, record.State, "trial error: %s", record.Error)
	require.Empty(t, record.Error)
	assert.Empty(t, record.FailedStage)

	require.Len(t, record.Sectors, 2)
	for _, sel := range record.Sectors {
		assert.Equal(t, 2, sel.Requested)
		assert.Len(t, sel.Symbols, 2)
		assert.False(t, sel.Capped)
		assert.Empty(t, sel.Removed)

		for _, symbol := range sel.Symbols {
			variant := record.Variants[symbol]
			assert.Contains(t, []string{backtest.VariantHold, backtest.VariantMACD}, variant)
		}
		assert.InDelta(t, 1.0, weightSum(record.SymbolWeights[sel.Sector]), 1e-9)
	}
	assert.InDelta(t, 1.0, weightSum(record.SectorWeights), 1e-9)

	// The fixture's one-factor prices keep the portfolio tracking the
	// benchmark, so the regression recovers a positive market exposure.
	assert.False(t, math.IsNaN(record.InSample.Sharpe))
	assert.Greater(t, record.InSample.Regression.Beta, 0.0)
	assert.Greater(t, record.InSample.Regression.RSquared, 0.3)
	assert.NotZero(t, record.InSample.BenchmarkProfit)

	assert.False(t, math.IsNaN(record.OutSample.Sharpe))
	assert.Greater(t, record.OutSample.Regression.Beta, 0.0)
	assert.Greater(t, record.OutSample.Regression.RSquared, 0.2)
	assert.NotZero(t, record.OutSample.BenchmarkProfit)

	assert.GreaterOrEqual(t, record.ElapsedMS, int64(0))
}

func TestTrialReproducibleForSameSeed(t *testing.T) {
	builder := newFixtureBuilder(testingpkg.NewDefaultFixtureProvider())
	exp := testingpkg.NewExperimentFixture()

	first := builder.Run(context.Background(), exp, 42)
	second := builder.Run(context.Background(), exp, 42)

	// Elapsed time is the only field allowed to differ between runs.
	first.ElapsedMS, second.ElapsedMS = 0, 0
	assert.Equal(t, first, second)
}

func TestTrialSectorCapOnUndersizedCatalog(t *testing.T) {
	provider := testingpkg.NewFixtureProvider(map[string][]string{
		"Energy": {"CVX", "XOM"},
	})
	builder := newFixtureBuilder(provider)

	exp := testingpkg.NewExperimentFixture()
	exp.Sectors = []string{"Energy"}
	exp.NumSymbols = 3

	record := builder.Run(context.Background(), exp, 1)

	require.Equal(t, domain.TrialStateDone, record.State, "trial error: %s", record.Error)
	require.Len(t, record.Sectors, 1)
	sel := record.Sectors[0]
	assert.True(t, sel.Capped)
	assert.Equal(t, []string{"CVX", "XOM"}, sel.Symbols)
	assert.Empty(t, sel.Removed)
}

func TestTrialDropsShortHistorySymbol(t *testing.T) {
	provider := testingpkg.NewFixtureProvider(map[string][]string{
		"Energy": {"NEW", "XOM"},
	})
	// Listed mid way through the in-sample window, so the symbol never has
	// enough data and the sector has no substitute for it.
	provider.ListedFrom["NEW"] = time.Date(2018, 6, 1, 0, 0, 0, 0, time.UTC)
	builder := newFixtureBuilder(provider)

	exp := testingpkg.NewExperimentFixture()
	exp.Sectors = []string{"Energy"}
	exp.NumSymbols = 2

	record := builder.Run(context.Background(), exp, 1)

	require.Equal(t, domain.TrialStateDone, record.State, "trial error: %s", record.Error)
	require.Len(t, record.Sectors, 1)
	sel := record.Sectors[0]
	assert.Equal(t, []string{"XOM"}, sel.Symbols)
	assert.Equal(t, []string{"NEW"}, sel.Removed)
	assert.True(t, sel.Capped)
	assert.InDelta(t, 1.0, record.SymbolWeights["Energy"]["XOM"], 1e-12)
}

func TestTrialSubstitutesRejectedSymbols(t *testing.T) {
	provider := testingpkg.NewFixtureProvider(map[string][]string{
		"Energy": {"AAA", "BBB", "CCC", "XOM"},
	})
	late := time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC)
	provider.ListedFrom["AAA"] = late
	provider.ListedFrom["BBB"] = late
	provider.ListedFrom["CCC"] = late
	builder := newFixtureBuilder(provider)

	exp := testingpkg.NewExperimentFixture()
	exp.Sectors = []string{"Energy"}
	exp.NumSymbols = 1

	record := builder.Run(context.Background(), exp, 3)

	// Whichever symbol the seed draws, the substitution chain always lands
	// on the only one with a full history.
	require.Equal(t, domain.TrialStateDone, record.State, "trial error: %s", record.Error)
	require.Len(t, record.Sectors, 1)
	sel := record.Sectors[0]
	assert.Equal(t, []string{"XOM"}, sel.Symbols)
	assert.False(t, sel.Capped)
	assert.Subset(t, []string{"AAA", "BBB", "CCC"}, sel.Removed)
}

func TestTrialDiscardedOnSingularCovariance(t *testing.T) {
	provider := testingpkg.NewFixtureProvider(map[string][]string{
		"Energy": {"XOM", "ZOM"},
	})
	provider.Clones["ZOM"] = "XOM"
	builder := newFixtureBuilder(provider)

	exp := testingpkg.NewExperimentFixture()
	exp.Sectors = []string{"Energy"}
	exp.NumSymbols = 2
	exp.Diagonalize = false

	record := builder.Run(context.Background(), exp, 1)

	assert.Equal(t, domain.TrialStateDiscarded, record.State)
	assert.Equal(t, domain.TrialStateSectorOptimize, record.FailedStage)
	assert.Contains(t, record.Error, "singular covariance")

	// The selection that led to the failure is preserved; metrics are not
	// fabricated.
	require.Len(t, record.Sectors, 1)
	assert.Equal(t, []string{"XOM", "ZOM"}, record.Sectors[0].Symbols)
	assert.Zero(t, record.InSample)
	assert.Zero(t, record.OutSample)
}

func TestTrialDiscardedOnUnknownSector(t *testing.T) {
	builder := newFixtureBuilder(testingpkg.NewDefaultFixtureProvider())

	exp := testingpkg.NewExperimentFixture()
	exp.Sectors = []string{"Utilities"}

	record := builder.Run(context.Background(), exp, 1)

	assert.Equal(t, domain.TrialStateDiscarded, record.State)
	assert.Equal(t, domain.TrialStateSelectSymbols, record.FailedStage)
	assert.Contains(t, record.Error, "no catalog symbols")
	require.Len(t, record.Sectors, 1)
	assert.Empty(t, record.Sectors[0].Symbols)
}

func TestTrialDiscardedOnBenchmarkFailure(t *testing.T) {
	provider := testingpkg.NewDefaultFixtureProvider()
	provider.Errors["SPY"] = errors.New("quota exhausted")
	builder := newFixtureBuilder(provider)

	record := builder.Run(context.Background(), testingpkg.NewExperimentFixture(), 1)

	assert.Equal(t, domain.TrialStateDiscarded, record.State)
	assert.Equal(t, domain.TrialStatePortfolioOptimize, record.FailedStage)
	assert.Contains(t, record.Error, "benchmark SPY")
}

func TestTrialDiscardedOnZeroSymbols(t *testing.T) {
	builder := newFixtureBuilder(testingpkg.NewDefaultFixtureProvider())

	exp := testingpkg.NewExperimentFixture()
	exp.NumSymbols = 0

	record := builder.Run(context.Background(), exp, 1)

	assert.Equal(t, domain.TrialStateDiscarded, record.State)
	assert.Equal(t, domain.TrialStateSelectSymbols, record.FailedStage)
	assert.Contains(t, record.Error, "num_symbols")
}
