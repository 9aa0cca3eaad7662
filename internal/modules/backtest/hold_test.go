package backtest

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/trellis/internal/domain"
)

func newTestEvaluator() *Evaluator {
	return NewEvaluator(domain.DefaultAnnualRiskFree, DefaultMACDParams, zerolog.Nop())
}

func mkSeries(symbol string, closes []float64) domain.PriceSeries {
	start := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	dates := make([]time.Time, len(closes))
	for i := range closes {
		dates[i] = start.AddDate(0, 0, i)
	}
	return domain.PriceSeries{Symbol: symbol, Dates: dates, Closes: closes}
}

func TestHoldExactProfit(t *testing.T) {
	ev := newTestEvaluator()

	series := mkSeries("UP", []float64{100, 110, 120, 135})
	res := ev.EvaluateHold(series, 10000)

	// floor(10000/100) = 100 shares, no residual.
	assert.Equal(t, VariantHold, res.Variant)
	assert.InDelta(t, 100*(135-100), res.Profit, 1e-9)
	assert.Positive(t, res.Sharpe)
}

func TestHoldResidualCashIdle(t *testing.T) {
	ev := newTestEvaluator()

	series := mkSeries("UP", []float64{100, 150})
	res := ev.EvaluateHold(series, 10050)

	// floor(10050/100) = 100 shares, 50 idle. Profit excludes the residual.
	require.Len(t, res.Valuation.Totals, 2)
	assert.InDelta(t, 10050, res.Valuation.Totals[0], 1e-9)
	assert.InDelta(t, 100*150+50, res.Valuation.Totals[1], 1e-9)
	assert.InDelta(t, 100*(150-100), res.Profit, 1e-9)
}

func TestHoldCashBelowFirstPrice(t *testing.T) {
	ev := newTestEvaluator()

	series := mkSeries("PRICY", []float64{5000, 6000, 7000})
	res := ev.EvaluateHold(series, 1000)

	// Zero affordable shares: the valuation is flat cash.
	for _, total := range res.Valuation.Totals {
		assert.InDelta(t, 1000, total, 1e-9)
	}
	assert.Zero(t, res.Profit)
	assert.Zero(t, res.Sharpe)
}

func TestHoldEmptySeries(t *testing.T) {
	ev := newTestEvaluator()

	res := ev.EvaluateHold(domain.PriceSeries{Symbol: "EMPTY"}, 1000)
	assert.Zero(t, res.Profit)
	assert.Zero(t, res.Sharpe)
	assert.Zero(t, res.Valuation.Len())
}

func TestHoldDecliningSeriesNegativeProfit(t *testing.T) {
	ev := newTestEvaluator()

	series := mkSeries("DOWN", []float64{100, 90, 80})
	res := ev.EvaluateHold(series, 1000)

	assert.InDelta(t, 10*(80-100), res.Profit, 1e-9)
	assert.Negative(t, res.Sharpe)
}
