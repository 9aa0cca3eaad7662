package backtest

import (
	"math"
	"time"

	"github.com/markcheno/go-talib"

	"github.com/aristath/trellis/internal/domain"
)

// EvaluateMACD simulates the MACD crossover. The desired state on day t is
// long when MACD(t) > signal(t); trades execute at the next day's effecting
// close, so the position held through day t is the state signalled on day
// t-1. No same-day information is ever used.
//
// Buys convert all available cash into whole shares at the effecting close;
// sells liquidate back to cash. Residual cash sits idle.
func (e *Evaluator) EvaluateMACD(series domain.PriceSeries, cash float64) Result {
	n := series.Len()
	if n == 0 {
		return Result{Variant: VariantMACD}
	}

	desired := e.desiredPositions(series.Closes)

	valuation := domain.ValuationSeries{
		Dates:  append([]time.Time(nil), series.Dates...),
		Totals: make([]float64, n),
	}
	valuation.Totals[0] = cash

	shares := 0.0
	residual := cash
	holding := false
	for i := 1; i < n; i++ {
		if want := desired[i-1]; want != holding {
			price := series.Closes[i-1]
			if want {
				if price > 0 {
					shares = math.Floor(residual / price)
					residual -= shares * price
				}
			} else {
				residual += shares * price
				shares = 0
			}
			holding = want
		}
		valuation.Totals[i] = shares*series.Closes[i] + residual
	}

	return e.score(VariantMACD, valuation)
}

// desiredPositions computes the raw long/flat state per day from the MACD
// line and its signal line. Days inside the indicator warmup are flat; a
// series shorter than the warmup is flat throughout.
func (e *Evaluator) desiredPositions(closes []float64) []bool {
	desired := make([]bool, len(closes))

	// First index where both the MACD line and the signal line are formed.
	warmup := e.macd.Slow + e.macd.Signal - 2
	if len(closes) <= warmup {
		return desired
	}

	macdLine, signalLine, _ := talib.Macd(closes, e.macd.Fast, e.macd.Slow, e.macd.Signal)
	for i := warmup; i < len(closes); i++ {
		desired[i] = macdLine[i] > signalLine[i]
	}
	return desired
}
