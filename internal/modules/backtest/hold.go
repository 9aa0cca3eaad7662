package backtest

import (
	"math"
	"time"

	"github.com/aristath/trellis/internal/domain"
)

// EvaluateHold simulates whole-share buy-and-hold: buy the maximum affordable
// whole number of shares at the first close, hold to the end. Residual cash
// sits idle and contributes zero return, so the final profit is exactly
// shares * (last - first).
func (e *Evaluator) EvaluateHold(series domain.PriceSeries, cash float64) Result {
	if series.Len() == 0 {
		return Result{Variant: VariantHold}
	}

	shares := 0.0
	if first := series.First(); first > 0 {
		shares = math.Floor(cash / first)
	}
	residual := cash - shares*series.First()

	valuation := domain.ValuationSeries{
		Dates:  append([]time.Time(nil), series.Dates...),
		Totals: make([]float64, series.Len()),
	}
	for i, price := range series.Closes {
		valuation.Totals[i] = shares*price + residual
	}

	return e.score(VariantHold, valuation)
}
