// Package backtest simulates trading strategies over daily price series and
// scores them. Two variants are supported: whole-share buy-and-hold and a
// MACD crossover that is long when the MACD line sits above its signal line.
package backtest

import (
	"github.com/rs/zerolog"

	"github.com/aristath/trellis/internal/domain"
)

// Strategy variant tags.
const (
	VariantHold = "HOLD"
	VariantMACD = "MACD"
)

// tieEpsilon is the Sharpe margin MACD must clear to beat HOLD. Ties go to
// HOLD, the simpler strategy.
const tieEpsilon = 1e-12

// MACDParams are the EMA window lengths of the crossover indicator.
type MACDParams struct {
	Fast   int
	Slow   int
	Signal int
}

// DefaultMACDParams is the conventional 12/26/9 configuration.
var DefaultMACDParams = MACDParams{Fast: 12, Slow: 26, Signal: 9}

// Result is one strategy's simulated outcome over a price series.
type Result struct {
	Variant   string                 `json:"variant"`
	Valuation domain.ValuationSeries `json:"-"`
	Profit    float64                `json:"profit"`
	Sharpe    float64                `json:"sharpe"`
}

// Evaluator runs all strategy variants over price series.
type Evaluator struct {
	dailyRF float64
	macd    MACDParams
	log     zerolog.Logger
}

// NewEvaluator creates a strategy evaluator. annualRF is the annual risk-free
// rate used for excess returns.
func NewEvaluator(annualRF float64, macd MACDParams, log zerolog.Logger) *Evaluator {
	if macd.Fast <= 0 || macd.Slow <= 0 || macd.Signal <= 0 {
		macd = DefaultMACDParams
	}
	return &Evaluator{
		dailyRF: domain.DailyRiskFree(annualRF),
		macd:    macd,
		log:     log.With().Str("component", "backtest").Logger(),
	}
}

// Evaluate runs every variant over the series with the given starting cash
// and returns the winner plus all results. The winner is the variant with the
// strictly higher annualized Sharpe ratio; ties go to HOLD.
func (e *Evaluator) Evaluate(series domain.PriceSeries, cash float64) (Result, []Result) {
	hold := e.EvaluateHold(series, cash)
	macd := e.EvaluateMACD(series, cash)

	best := hold
	if macd.Sharpe > hold.Sharpe+tieEpsilon {
		best = macd
	}
	return best, []Result{hold, macd}
}

// EvaluateVariant runs a single named variant. Unknown tags fall back to HOLD.
func (e *Evaluator) EvaluateVariant(variant string, series domain.PriceSeries, cash float64) Result {
	if variant == VariantMACD {
		return e.EvaluateMACD(series, cash)
	}
	return e.EvaluateHold(series, cash)
}

// score fills Profit and Sharpe from a finished valuation path.
func (e *Evaluator) score(variant string, valuation domain.ValuationSeries) Result {
	return Result{
		Variant:   variant,
		Valuation: valuation,
		Profit:    valuation.Profit(),
		Sharpe:    AnnualizedSharpe(valuation.ExcessReturns(e.dailyRF)),
	}
}
