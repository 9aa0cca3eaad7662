// Package optimization computes closed-form mean-variance portfolio weights.
//
// The tangency solve follows the textbook form: with Sigma the sample
// covariance of daily returns and mu the mean excess-return vector, the
// maximum-Sharpe weights are proportional to Sigma^-1 mu, normalized to sum
// to one. Sigma is factorized with Cholesky rather than inverted outright, so
// singular or ill-conditioned inputs (duplicate symbols, constant series)
// surface as ErrSingularCovariance instead of degenerating into unstable
// weight vectors.
package optimization

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/trellis/internal/domain"
)

// conditionLimit rejects factorizations whose condition number would amplify
// input noise past any usable precision in the solve.
const conditionLimit = 1e12

// Optimizer computes mean-variance weights over aligned daily return columns.
// Weights are unconstrained: negative (short) and above-one (leveraged)
// entries are valid outputs, never clamped.
type Optimizer struct {
	log zerolog.Logger
}

// NewOptimizer creates an Optimizer.
func NewOptimizer(log zerolog.Logger) *Optimizer {
	return &Optimizer{log: log.With().Str("component", "optimizer").Logger()}
}

// Tangency computes maximum-Sharpe weights for the given return columns.
// dailyRF is subtracted from each column mean to form the excess-return
// vector; it does not affect the covariance. With a single column the only
// solution is full weight on that asset. Weights sum to 1 on success.
func (o *Optimizer) Tangency(returns [][]float64, dailyRF float64, diagonalize bool) ([]float64, error) {
	if err := validateColumns(returns); err != nil {
		return nil, err
	}
	n := len(returns)
	if n == 1 {
		return []float64{1}, nil
	}

	mu := columnMeans(returns)
	floats.AddConst(-dailyRF, mu)

	sigma := sampleCovariance(returns)
	if diagonalize {
		sigma = diagonalOf(sigma)
	}

	chol, err := factorize(sigma)
	if err != nil {
		return nil, err
	}

	var solved mat.VecDense
	if err := chol.SolveVecTo(&solved, mat.NewVecDense(n, mu)); err != nil {
		return nil, fmt.Errorf("covariance solve failed: %w", domain.ErrSingularCovariance)
	}

	weights := make([]float64, n)
	for i := range weights {
		weights[i] = solved.AtVec(i)
	}
	total := floats.Sum(weights)
	if total == 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return nil, fmt.Errorf("raw weights sum to %v, cannot normalize: %w", total, domain.ErrSingularCovariance)
	}
	floats.Scale(1/total, weights)

	// A negative normalizing sum puts the unit-sum portfolio on the
	// Sharpe-minimal branch of the frontier (shorting the whole vector would
	// score higher). The weight sum is pinned to one unit of capital, so the
	// condition is logged and the weights stand.
	negated := make([]float64, n)
	for i, w := range weights {
		negated[i] = -w
	}
	if weightsSharpe(negated, mu, sigma) > weightsSharpe(weights, mu, sigma) {
		o.log.Warn().
			Int("assets", n).
			Float64("raw_sum", total).
			Msg("Tangency solution is on the negative excess-return branch")
	}

	o.log.Debug().
		Int("assets", n).
		Bool("diagonalize", diagonalize).
		Float64("sharpe", weightsSharpe(weights, mu, sigma)).
		Msg("Tangency weights computed")

	return weights, nil
}

// MinVarianceForReturn computes the minimum-variance weights whose expected
// annualized return equals targetAnnual, using the standard two-constraint
// closed form (w = lambda Sigma^-1 1 + gamma Sigma^-1 mu). Weights sum to 1
// on success. When the column means are collinear with the unit vector the
// target constraint is unsatisfiable and the solve fails.
func (o *Optimizer) MinVarianceForReturn(returns [][]float64, targetAnnual float64) ([]float64, error) {
	if err := validateColumns(returns); err != nil {
		return nil, err
	}
	n := len(returns)
	if n == 1 {
		return []float64{1}, nil
	}

	target := targetAnnual / domain.TradingDaysPerYear
	mu := columnMeans(returns)
	sigma := sampleCovariance(returns)

	chol, err := factorize(sigma)
	if err != nil {
		return nil, err
	}

	ones := make([]float64, n)
	for i := range ones {
		ones[i] = 1
	}

	var invOnes, invMu mat.VecDense
	if err := chol.SolveVecTo(&invOnes, mat.NewVecDense(n, ones)); err != nil {
		return nil, fmt.Errorf("covariance solve failed: %w", domain.ErrSingularCovariance)
	}
	if err := chol.SolveVecTo(&invMu, mat.NewVecDense(n, mu)); err != nil {
		return nil, fmt.Errorf("covariance solve failed: %w", domain.ErrSingularCovariance)
	}

	var a, b, c float64
	for i := 0; i < n; i++ {
		a += invOnes.AtVec(i)
		b += invMu.AtVec(i)
		c += mu[i] * invMu.AtVec(i)
	}
	det := a*c - b*b
	if math.Abs(det) <= math.Abs(a*c)*1e-12 {
		return nil, fmt.Errorf("mean returns are collinear with the unit vector: %w", domain.ErrSingularCovariance)
	}

	lambda := (c - b*target) / det
	gamma := (a*target - b) / det

	weights := make([]float64, n)
	for i := range weights {
		weights[i] = lambda*invOnes.AtVec(i) + gamma*invMu.AtVec(i)
	}

	o.log.Debug().
		Int("assets", n).
		Float64("target_annual", targetAnnual).
		Msg("Minimum-variance weights computed")

	return weights, nil
}

// factorize runs the Cholesky decomposition of sigma, mapping factorization
// failure and ill-conditioning to ErrSingularCovariance.
func factorize(sigma *mat.SymDense) (*mat.Cholesky, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(sigma); !ok {
		return nil, fmt.Errorf("cholesky factorization failed: %w", domain.ErrSingularCovariance)
	}
	if cond := chol.Cond(); cond > conditionLimit {
		return nil, fmt.Errorf("covariance condition number %.3g exceeds limit: %w", cond, domain.ErrSingularCovariance)
	}
	return &chol, nil
}

// weightsSharpe computes the annualized Sharpe ratio of a weight vector from
// the mean excess-return vector and the covariance matrix.
func weightsSharpe(weights, mu []float64, sigma *mat.SymDense) float64 {
	w := mat.NewVecDense(len(weights), weights)
	variance := mat.Inner(w, sigma, w)
	if variance <= 0 {
		return 0
	}
	annualMean := floats.Dot(mu, weights) * domain.TradingDaysPerYear
	annualVol := math.Sqrt(variance) * math.Sqrt(domain.TradingDaysPerYear)
	return annualMean / annualVol
}
