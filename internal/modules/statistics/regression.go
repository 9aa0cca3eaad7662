package statistics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/aristath/trellis/internal/domain"
)

// Regress fits y = alpha + beta*x by ordinary least squares and reports the
// R² of the fit. The slope needs at least two distinct x values to exist.
func Regress(xs, ys []float64) (alpha, beta, r2 float64, err error) {
	if len(xs) != len(ys) {
		return 0, 0, 0, fmt.Errorf("%d x values vs %d y values: %w", len(xs), len(ys), domain.ErrInputMismatch)
	}
	if len(xs) < 2 {
		return 0, 0, 0, fmt.Errorf("regression needs at least 2 points, got %d: %w", len(xs), domain.ErrInsufficientSampleSize)
	}
	distinct := false
	for _, x := range xs[1:] {
		if x != xs[0] {
			distinct = true
			break
		}
	}
	if !distinct {
		return 0, 0, 0, fmt.Errorf("all %d x values identical: %w", len(xs), domain.ErrInsufficientSampleSize)
	}

	alpha, beta = stat.LinearRegression(xs, ys, nil, false)

	estimates := make([]float64, len(xs))
	for i, x := range xs {
		estimates[i] = alpha + beta*x
	}
	r2 = stat.RSquaredFrom(estimates, ys, nil)
	if math.IsNaN(r2) {
		// Zero variance in y: an exact fit that explains nothing.
		r2 = 0
	}
	return alpha, beta, r2, nil
}

// CompareToBenchmark regresses the portfolio's daily excess returns on the
// benchmark's, the usual CAPM decomposition. Treynor and information ratio
// stay in daily units. Degenerate denominators (zero beta, zero residual
// spread) report a zero ratio; trial records are JSON-serialized and must
// stay finite.
func CompareToBenchmark(portfolio, benchmark []float64) (domain.RegressionStats, error) {
	alpha, beta, r2, err := Regress(benchmark, portfolio)
	if err != nil {
		return domain.RegressionStats{}, err
	}

	residuals := make([]float64, len(portfolio))
	for i := range portfolio {
		residuals[i] = portfolio[i] - (alpha + beta*benchmark[i])
	}
	residualStd := stat.StdDev(residuals, nil)

	stats := domain.RegressionStats{Alpha: alpha, Beta: beta, RSquared: r2}
	if beta != 0 {
		stats.Treynor = stat.Mean(portfolio, nil) / beta
	}
	if residualStd > 0 {
		stats.InformationRatio = alpha / residualStd
	}
	return stats, nil
}
