package statistics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/trellis/internal/domain"
)

func TestRegressRecoversExactLine(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5, 6}
	ys := make([]float64, len(xs))
	for i, x := range xs {
		ys[i] = 2 + 3*x
	}

	alpha, beta, r2, err := Regress(xs, ys)
	require.NoError(t, err)

	assert.InDelta(t, 2.0, alpha, 1e-9)
	assert.InDelta(t, 3.0, beta, 1e-9)
	assert.InDelta(t, 1.0, r2, 1e-9)
}

func TestRegressNoisyFit(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5, 6}
	noise := []float64{0.1, -0.1, 0.1, -0.1, 0.1, -0.1}
	ys := make([]float64, len(xs))
	for i, x := range xs {
		ys[i] = 1 + 0.5*x + noise[i]
	}

	alpha, beta, r2, err := Regress(xs, ys)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, alpha, 0.1)
	assert.InDelta(t, 0.5, beta, 0.05)
	assert.Greater(t, r2, 0.95)
	assert.Less(t, r2, 1.0)
}

func TestRegressMismatchedLengths(t *testing.T) {
	_, _, _, err := Regress([]float64{1, 2, 3}, []float64{1, 2})
	assert.ErrorIs(t, err, domain.ErrInputMismatch)
}

func TestRegressTooFewPoints(t *testing.T) {
	_, _, _, err := Regress([]float64{1}, []float64{2})
	assert.ErrorIs(t, err, domain.ErrInsufficientSampleSize)

	_, _, _, err = Regress(nil, nil)
	assert.ErrorIs(t, err, domain.ErrInsufficientSampleSize)
}

func TestRegressIdenticalXValues(t *testing.T) {
	_, _, _, err := Regress([]float64{2, 2, 2}, []float64{1, 2, 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientSampleSize)
	assert.Contains(t, err.Error(), "identical")
}

func TestRegressConstantYExplainsNothing(t *testing.T) {
	alpha, beta, r2, err := Regress([]float64{1, 2, 3, 4}, []float64{5, 5, 5, 5})
	require.NoError(t, err)

	assert.InDelta(t, 5.0, alpha, 1e-9)
	assert.InDelta(t, 0.0, beta, 1e-9)
	assert.Zero(t, r2)
}

func TestCompareToBenchmarkPerfectTracking(t *testing.T) {
	benchmark := []float64{0.01, -0.02, 0.015, 0.005, -0.01, 0.02}
	portfolio := make([]float64, len(benchmark))
	copy(portfolio, benchmark)

	stats, err := CompareToBenchmark(portfolio, benchmark)
	require.NoError(t, err)

	assert.InDelta(t, 0.0, stats.Alpha, 1e-9)
	assert.InDelta(t, 1.0, stats.Beta, 1e-9)
	assert.InDelta(t, 1.0, stats.RSquared, 1e-9)
}

func TestCompareToBenchmarkDecomposition(t *testing.T) {
	// Noise pairs cancel against the benchmark's sign-symmetric values, so
	// the regression recovers alpha and beta exactly and the residuals are
	// the noise itself.
	benchmark := []float64{0.01, -0.01, 0.02, -0.02, 0.015, -0.015}
	noise := []float64{0.003, 0.003, -0.001, -0.001, -0.002, -0.002}
	portfolio := make([]float64, len(benchmark))
	for i := range benchmark {
		portfolio[i] = 0.001 + 1.5*benchmark[i] + noise[i]
	}

	stats, err := CompareToBenchmark(portfolio, benchmark)
	require.NoError(t, err)

	assert.InDelta(t, 0.001, stats.Alpha, 1e-9)
	assert.InDelta(t, 1.5, stats.Beta, 1e-9)
	assert.Greater(t, stats.RSquared, 0.98)
	assert.Less(t, stats.RSquared, 1.0)

	// Mean portfolio return is the alpha (benchmark and noise are zero-mean).
	assert.InDelta(t, 0.001/1.5, stats.Treynor, 1e-9)

	// Sample stddev of the residuals: sqrt(sum(noise^2)/5).
	expectedIR := 0.001 / math.Sqrt(2*(0.003*0.003+0.001*0.001+0.002*0.002)/5)
	assert.InDelta(t, expectedIR, stats.InformationRatio, 1e-6)
}

func TestCompareToBenchmarkPropagatesErrors(t *testing.T) {
	_, err := CompareToBenchmark([]float64{0.01, 0.02}, []float64{0.01})
	assert.ErrorIs(t, err, domain.ErrInputMismatch)

	_, err = CompareToBenchmark([]float64{0.01, 0.02, 0.03}, []float64{0.05, 0.05, 0.05})
	assert.ErrorIs(t, err, domain.ErrInsufficientSampleSize)
}
