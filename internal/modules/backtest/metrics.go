package backtest

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/aristath/trellis/internal/domain"
)

// AnnualizedSharpe computes mean(excess)*252 / (std(excess)*sqrt(252)) with
// the sample standard deviation. Degenerate inputs (fewer than two points or
// zero variance) score 0 rather than NaN so they never poison aggregates.
func AnnualizedSharpe(excess []float64) float64 {
	if len(excess) < 2 {
		return 0
	}

	mean := stat.Mean(excess, nil)
	sd := stat.StdDev(excess, nil)
	if sd == 0 || math.IsNaN(sd) {
		return 0
	}

	days := float64(domain.TradingDaysPerYear)
	return mean * days / (sd * math.Sqrt(days))
}
