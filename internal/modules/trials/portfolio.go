package trials

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/trellis/internal/domain"
	"github.com/aristath/trellis/internal/modules/backtest"
	"github.com/aristath/trellis/internal/modules/statistics"
)

// expandPortfolio re-runs every symbol's winning variant with
// cash * sector_weight * symbol_weight and sums the legs over their common
// trading days. This is the recursive expansion used for both the in-sample
// check and the out-of-sample evaluation.
func (t *trial) expandPortfolio(series map[string]domain.PriceSeries) (domain.ValuationSeries, error) {
	var legs []domain.ValuationSeries
	for _, sel := range t.record.Sectors {
		sectorWeight := t.record.SectorWeights[sel.Sector]
		symbolWeights := t.record.SymbolWeights[sel.Sector]
		for _, symbol := range sel.Symbols {
			allocation := t.exp.Cash * sectorWeight * symbolWeights[symbol]
			result := t.evaluator.EvaluateVariant(t.record.Variants[symbol], series[symbol], allocation)
			legs = append(legs, result.Valuation)
		}
	}
	return sumValuations(legs)
}

// evaluateWindow computes the period metrics of the expanded portfolio over
// one window: Sharpe and profit of the summed valuation path, the benchmark's
// buy-and-hold profit with the same cash, and the CAPM regression of the
// portfolio's daily excess returns on the benchmark's.
func (t *trial) evaluateWindow(ctx context.Context, series map[string]domain.PriceSeries, start, end time.Time) (domain.PeriodMetrics, error) {
	portfolio, err := t.expandPortfolio(series)
	if err != nil {
		return domain.PeriodMetrics{}, err
	}

	metrics := domain.PeriodMetrics{
		Sharpe: backtest.AnnualizedSharpe(portfolio.ExcessReturns(t.dailyRF)),
		Profit: portfolio.Profit(),
	}

	bench, err := t.builder.provider.PriceSeries(ctx, t.exp.Benchmark, start, end)
	if err != nil {
		return domain.PeriodMetrics{}, fmt.Errorf("benchmark %s: %w", t.exp.Benchmark, err)
	}
	metrics.BenchmarkProfit = t.evaluator.EvaluateHold(bench, t.exp.Cash).Profit

	// The regressor is the benchmark's raw adjusted-close excess return, not
	// the whole-share HOLD path: share rounding belongs in the profit figure
	// but would contaminate beta.
	alignedPortfolio, alignedBench := alignToBenchmark(portfolio, bench)
	regression, err := statistics.CompareToBenchmark(
		alignedPortfolio.ExcessReturns(t.dailyRF),
		alignedBench.ExcessReturns(t.dailyRF),
	)
	if err != nil {
		return domain.PeriodMetrics{}, fmt.Errorf("benchmark regression: %w", err)
	}
	metrics.Regression = regression

	return metrics, nil
}

// alignValuations restricts each series to the trading days present in all of
// them. Legs may differ in length within the provider's sufficiency tolerance;
// summation and covariance both need one shared date axis.
func alignValuations(legs []domain.ValuationSeries) ([]domain.ValuationSeries, error) {
	if len(legs) <= 1 {
		return legs, nil
	}

	counts := make(map[int64]int)
	for _, leg := range legs {
		for _, date := range leg.Dates {
			counts[date.Unix()]++
		}
	}

	aligned := make([]domain.ValuationSeries, len(legs))
	for i, leg := range legs {
		var out domain.ValuationSeries
		for j, date := range leg.Dates {
			if counts[date.Unix()] == len(legs) {
				out.Dates = append(out.Dates, date)
				out.Totals = append(out.Totals, leg.Totals[j])
			}
		}
		aligned[i] = out
	}

	if aligned[0].Len() == 0 {
		return nil, fmt.Errorf("no common trading days across %d series: %w", len(legs), domain.ErrInputMismatch)
	}
	return aligned, nil
}

// sumValuations adds valuation series element-wise over their common dates.
func sumValuations(legs []domain.ValuationSeries) (domain.ValuationSeries, error) {
	aligned, err := alignValuations(legs)
	if err != nil {
		return domain.ValuationSeries{}, err
	}

	var total domain.ValuationSeries
	for _, leg := range aligned {
		if err := total.AddScaled(leg, 1); err != nil {
			return domain.ValuationSeries{}, err
		}
	}
	return total, nil
}

// alignToBenchmark restricts a valuation path and a price series to their
// common dates so their return vectors line up for the regression.
func alignToBenchmark(portfolio domain.ValuationSeries, bench domain.PriceSeries) (domain.ValuationSeries, domain.PriceSeries) {
	benchIdx := make(map[int64]int, len(bench.Dates))
	for i, date := range bench.Dates {
		benchIdx[date.Unix()] = i
	}

	var (
		outPortfolio domain.ValuationSeries
		outBench     = domain.PriceSeries{Symbol: bench.Symbol}
	)
	for i, date := range portfolio.Dates {
		j, ok := benchIdx[date.Unix()]
		if !ok {
			continue
		}
		outPortfolio.Dates = append(outPortfolio.Dates, date)
		outPortfolio.Totals = append(outPortfolio.Totals, portfolio.Totals[i])
		outBench.Dates = append(outBench.Dates, bench.Dates[j])
		outBench.Closes = append(outBench.Closes, bench.Closes[j])
	}
	return outPortfolio, outBench
}
