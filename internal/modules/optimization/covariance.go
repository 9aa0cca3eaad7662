package optimization

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/trellis/internal/domain"
)

// sampleCovariance builds the N x N sample covariance matrix (N-1 denominator)
// of the given return columns. Columns must already be aligned.
func sampleCovariance(returns [][]float64) *mat.SymDense {
	n := len(returns)
	sigma := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sigma.SetSym(i, j, stat.Covariance(returns[i], returns[j], nil))
		}
	}
	return sigma
}

// diagonalOf keeps only the variances of sigma, zeroing the covariances.
// Solving against the full sample matrix amplifies estimation noise in the
// off-diagonal entries; the diagonal variant discards that information in
// exchange for a better-conditioned solve.
func diagonalOf(sigma *mat.SymDense) *mat.SymDense {
	n := sigma.SymmetricDim()
	diag := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		diag.SetSym(i, i, sigma.At(i, i))
	}
	return diag
}

// columnMeans returns the sample mean of each return column.
func columnMeans(returns [][]float64) []float64 {
	mu := make([]float64, len(returns))
	for i, col := range returns {
		mu[i] = stat.Mean(col, nil)
	}
	return mu
}

// validateColumns checks that every return column has the same length and
// that there are enough observations to estimate a covariance.
func validateColumns(returns [][]float64) error {
	if len(returns) == 0 {
		return fmt.Errorf("no return series given: %w", domain.ErrInputMismatch)
	}
	obs := len(returns[0])
	for i, col := range returns[1:] {
		if len(col) != obs {
			return fmt.Errorf("series %d has %d observations, series 0 has %d: %w",
				i+1, len(col), obs, domain.ErrInputMismatch)
		}
	}
	if len(returns) > 1 && obs < 2 {
		return fmt.Errorf("need at least 2 observations, got %d: %w", obs, domain.ErrSingularCovariance)
	}
	return nil
}
