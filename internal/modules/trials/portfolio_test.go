package trials

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/trellis/internal/domain"
)

func tradingDay(offset int) time.Time {
	return time.Date(2018, 3, 5, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func valuationOn(days []int, totals []float64) domain.ValuationSeries {
	v := domain.ValuationSeries{Totals: totals}
	for _, day := range days {
		v.Dates = append(v.Dates, tradingDay(day))
	}
	return v
}

func TestAlignValuationsRestrictsToCommonDates(t *testing.T) {
	legs := []domain.ValuationSeries{
		valuationOn([]int{0, 1, 2}, []float64{100, 110, 120}),
		valuationOn([]int{1, 2, 3}, []float64{50, 60, 70}),
	}

	aligned, err := alignValuations(legs)
	require.NoError(t, err)

	require.Len(t, aligned, 2)
	assert.Equal(t, []time.Time{tradingDay(1), tradingDay(2)}, aligned[0].Dates)
	assert.Equal(t, []float64{110, 120}, aligned[0].Totals)
	assert.Equal(t, []time.Time{tradingDay(1), tradingDay(2)}, aligned[1].Dates)
	assert.Equal(t, []float64{50, 60}, aligned[1].Totals)
}

func TestAlignValuationsSingleLegPassthrough(t *testing.T) {
	leg := valuationOn([]int{0, 1}, []float64{100, 101})

	aligned, err := alignValuations([]domain.ValuationSeries{leg})
	require.NoError(t, err)

	require.Len(t, aligned, 1)
	assert.Equal(t, leg, aligned[0])
}

func TestAlignValuationsNoOverlap(t *testing.T) {
	legs := []domain.ValuationSeries{
		valuationOn([]int{0, 1}, []float64{100, 110}),
		valuationOn([]int{2, 3}, []float64{50, 60}),
	}

	_, err := alignValuations(legs)
	assert.ErrorIs(t, err, domain.ErrInputMismatch)
}

func TestSumValuationsAddsCommonDates(t *testing.T) {
	legs := []domain.ValuationSeries{
		valuationOn([]int{0, 1, 2}, []float64{100, 110, 120}),
		valuationOn([]int{1, 2, 3}, []float64{50, 60, 70}),
	}

	total, err := sumValuations(legs)
	require.NoError(t, err)

	assert.Equal(t, []time.Time{tradingDay(1), tradingDay(2)}, total.Dates)
	assert.Equal(t, []float64{160, 180}, total.Totals)
}

func TestAlignToBenchmarkDropsUnmatchedDays(t *testing.T) {
	portfolio := valuationOn([]int{0, 1, 2}, []float64{100, 110, 120})
	bench := domain.PriceSeries{
		Symbol: "SPY",
		Dates:  []time.Time{tradingDay(1), tradingDay(2), tradingDay(3)},
		Closes: []float64{280, 281, 282},
	}

	outPortfolio, outBench := alignToBenchmark(portfolio, bench)

	assert.Equal(t, []time.Time{tradingDay(1), tradingDay(2)}, outPortfolio.Dates)
	assert.Equal(t, []float64{110, 120}, outPortfolio.Totals)
	assert.Equal(t, "SPY", outBench.Symbol)
	assert.Equal(t, []float64{280, 281}, outBench.Closes)
}
