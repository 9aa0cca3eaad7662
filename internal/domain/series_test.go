package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPriceSeriesReturns(t *testing.T) {
	s := PriceSeries{
		Symbol: "TEST",
		Dates:  []time.Time{day(2020, 1, 2), day(2020, 1, 3), day(2020, 1, 6)},
		Closes: []float64{100, 110, 99},
	}

	rets := s.Returns()
	require.Len(t, rets, 2)
	assert.InDelta(t, 0.10, rets[0], 1e-12)
	assert.InDelta(t, -0.10, rets[1], 1e-12)
}

func TestPriceSeriesReturnsShortSeries(t *testing.T) {
	s := PriceSeries{Symbol: "TEST", Dates: []time.Time{day(2020, 1, 2)}, Closes: []float64{100}}
	assert.Nil(t, s.Returns())

	empty := PriceSeries{Symbol: "TEST"}
	assert.Nil(t, empty.Returns())
}

func TestPriceSeriesExcessReturns(t *testing.T) {
	s := PriceSeries{
		Symbol: "TEST",
		Dates:  []time.Time{day(2020, 1, 2), day(2020, 1, 3)},
		Closes: []float64{100, 101},
	}

	rf := DailyRiskFree(DefaultAnnualRiskFree)
	excess := s.ExcessReturns(rf)
	require.Len(t, excess, 1)
	assert.InDelta(t, 0.01-rf, excess[0], 1e-12)
}

func TestPriceSeriesSliceRange(t *testing.T) {
	s := PriceSeries{
		Symbol: "TEST",
		Dates:  []time.Time{day(2020, 1, 2), day(2020, 1, 3), day(2020, 1, 6), day(2020, 1, 7)},
		Closes: []float64{1, 2, 3, 4},
	}

	sub := s.SliceRange(day(2020, 1, 3), day(2020, 1, 7))
	require.Equal(t, 2, sub.Len())
	assert.Equal(t, []float64{2, 3}, sub.Closes)

	// End before start yields an empty series
	empty := s.SliceRange(day(2020, 2, 1), day(2020, 1, 1))
	assert.Equal(t, 0, empty.Len())
}

func TestPriceSeriesValidate(t *testing.T) {
	good := PriceSeries{
		Symbol: "TEST",
		Dates:  []time.Time{day(2020, 1, 2), day(2020, 1, 3)},
		Closes: []float64{1, 2},
	}
	require.NoError(t, good.Validate())

	mismatch := PriceSeries{Symbol: "TEST", Dates: []time.Time{day(2020, 1, 2)}, Closes: []float64{1, 2}}
	assert.ErrorIs(t, mismatch.Validate(), ErrInputMismatch)

	outOfOrder := PriceSeries{
		Symbol: "TEST",
		Dates:  []time.Time{day(2020, 1, 3), day(2020, 1, 2)},
		Closes: []float64{1, 2},
	}
	assert.ErrorIs(t, outOfOrder.Validate(), ErrInputMismatch)
}

func TestValuationSeriesProfit(t *testing.T) {
	v := ValuationSeries{
		Dates:  []time.Time{day(2020, 1, 2), day(2020, 1, 3)},
		Totals: []float64{1000000.004, 1100000},
	}
	// Initial value is rounded to cents before subtracting
	assert.InDelta(t, 100000.0, v.Profit(), 1e-6)

	empty := ValuationSeries{}
	assert.Equal(t, 0.0, empty.Profit())
}

func TestValuationSeriesAddScaled(t *testing.T) {
	base := ValuationSeries{}
	other := ValuationSeries{
		Dates:  []time.Time{day(2020, 1, 2), day(2020, 1, 3)},
		Totals: []float64{100, 200},
	}

	require.NoError(t, base.AddScaled(other, 0.5))
	assert.InDelta(t, 50, base.Totals[0], 1e-12)
	assert.InDelta(t, 100, base.Totals[1], 1e-12)

	// Accumulating a second leg with negative weight
	require.NoError(t, base.AddScaled(other, -0.25))
	assert.InDelta(t, 25, base.Totals[0], 1e-12)

	short := ValuationSeries{Dates: other.Dates[:1], Totals: other.Totals[:1]}
	assert.ErrorIs(t, base.AddScaled(short, 1), ErrInputMismatch)
}
