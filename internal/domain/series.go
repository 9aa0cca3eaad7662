package domain

import (
	"fmt"
	"time"
)

// PriceSeries holds adjusted daily closes for one symbol over a window of
// trading days. Dates and Closes always have the same length and Dates is
// strictly ascending.
type PriceSeries struct {
	Symbol string      `json:"symbol"`
	Dates  []time.Time `json:"dates"`
	Closes []float64   `json:"closes"`
}

// Len returns the number of trading days in the series.
func (s PriceSeries) Len() int {
	return len(s.Closes)
}

// First returns the first close. Panics on empty series; callers check Len.
func (s PriceSeries) First() float64 {
	return s.Closes[0]
}

// Last returns the last close.
func (s PriceSeries) Last() float64 {
	return s.Closes[len(s.Closes)-1]
}

// Returns computes simple daily returns: r(t) = close(t)/close(t-1) - 1.
// The result has length Len()-1. An empty or single-point series yields nil.
func (s PriceSeries) Returns() []float64 {
	if len(s.Closes) < 2 {
		return nil
	}
	rets := make([]float64, len(s.Closes)-1)
	for i := 1; i < len(s.Closes); i++ {
		rets[i-1] = s.Closes[i]/s.Closes[i-1] - 1
	}
	return rets
}

// ExcessReturns computes daily returns minus the daily risk-free rate.
func (s PriceSeries) ExcessReturns(dailyRF float64) []float64 {
	rets := s.Returns()
	for i := range rets {
		rets[i] -= dailyRF
	}
	return rets
}

// SliceRange returns the sub-series with start <= date < end.
func (s PriceSeries) SliceRange(start, end time.Time) PriceSeries {
	lo := 0
	for lo < len(s.Dates) && s.Dates[lo].Before(start) {
		lo++
	}
	hi := lo
	for hi < len(s.Dates) && s.Dates[hi].Before(end) {
		hi++
	}
	return PriceSeries{
		Symbol: s.Symbol,
		Dates:  s.Dates[lo:hi],
		Closes: s.Closes[lo:hi],
	}
}

// Validate checks the structural invariants of the series.
func (s PriceSeries) Validate() error {
	if len(s.Dates) != len(s.Closes) {
		return fmt.Errorf("series %s: %d dates vs %d closes: %w", s.Symbol, len(s.Dates), len(s.Closes), ErrInputMismatch)
	}
	for i := 1; i < len(s.Dates); i++ {
		if !s.Dates[i].After(s.Dates[i-1]) {
			return fmt.Errorf("series %s: dates not strictly ascending at index %d: %w", s.Symbol, i, ErrInputMismatch)
		}
	}
	return nil
}

// PriceBar is one daily OHLCV observation as delivered by a market-data
// source.
type PriceBar struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adj_close"`
	Volume   *int64    `json:"volume,omitempty"` // nil when the source omits it
}

// SeriesFromBars builds a PriceSeries from daily bars, preferring the
// adjusted close when present.
func SeriesFromBars(symbol string, bars []PriceBar) PriceSeries {
	series := PriceSeries{
		Symbol: symbol,
		Dates:  make([]time.Time, 0, len(bars)),
		Closes: make([]float64, 0, len(bars)),
	}
	for _, bar := range bars {
		price := bar.AdjClose
		if price <= 0 {
			price = bar.Close
		}
		series.Dates = append(series.Dates, bar.Date)
		series.Closes = append(series.Closes, price)
	}
	return series
}

// ValuationSeries is a daily portfolio value path produced by a strategy run.
// It shares the date axis of the price series it was computed from.
type ValuationSeries struct {
	Dates  []time.Time `json:"dates"`
	Totals []float64   `json:"totals"`
}

// Len returns the number of valuation points.
func (v ValuationSeries) Len() int {
	return len(v.Totals)
}

// Returns computes simple daily returns of the valuation path.
func (v ValuationSeries) Returns() []float64 {
	if len(v.Totals) < 2 {
		return nil
	}
	rets := make([]float64, len(v.Totals)-1)
	for i := 1; i < len(v.Totals); i++ {
		rets[i-1] = v.Totals[i]/v.Totals[i-1] - 1
	}
	return rets
}

// ExcessReturns computes daily valuation returns minus the daily risk-free rate.
func (v ValuationSeries) ExcessReturns(dailyRF float64) []float64 {
	rets := v.Returns()
	for i := range rets {
		rets[i] -= dailyRF
	}
	return rets
}

// Profit is the change in value from the first day to the last, with the
// initial value rounded to cents.
func (v ValuationSeries) Profit() float64 {
	if len(v.Totals) == 0 {
		return 0
	}
	initial := roundCents(v.Totals[0])
	return v.Totals[len(v.Totals)-1] - initial
}

// AddScaled accumulates other*scale into v (element-wise on Totals).
// Lengths must match.
func (v *ValuationSeries) AddScaled(other ValuationSeries, scale float64) error {
	if len(v.Totals) == 0 {
		v.Dates = append([]time.Time(nil), other.Dates...)
		v.Totals = make([]float64, len(other.Totals))
	}
	if len(v.Totals) != len(other.Totals) {
		return fmt.Errorf("valuation series length %d vs %d: %w", len(v.Totals), len(other.Totals), ErrInputMismatch)
	}
	for i := range v.Totals {
		v.Totals[i] += other.Totals[i] * scale
	}
	return nil
}

func roundCents(x float64) float64 {
	if x >= 0 {
		return float64(int64(x*100+0.5)) / 100
	}
	return float64(int64(x*100-0.5)) / 100
}
