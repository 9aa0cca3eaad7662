package statistics

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/trellis/internal/domain"
)

func TestBootstrapCIConstantInput(t *testing.T) {
	values := []float64{4.5, 4.5, 4.5, 4.5, 4.5}

	ci, err := BootstrapCI(values, 500, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	assert.Equal(t, 4.5, ci.Low)
	assert.Equal(t, 4.5, ci.Median)
	assert.Equal(t, 4.5, ci.High)
}

func TestBootstrapCITooFewValues(t *testing.T) {
	_, err := BootstrapCI([]float64{1.0}, 1000, rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, domain.ErrInsufficientSampleSize)

	_, err = BootstrapCI(nil, 1000, rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, domain.ErrInsufficientSampleSize)
}

func TestBootstrapCIOrderingAndCoverage(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10} // mean 5.5

	ci, err := BootstrapCI(values, 2000, rand.New(rand.NewSource(42)))
	require.NoError(t, err)

	assert.Less(t, ci.Low, ci.Median)
	assert.Less(t, ci.Median, ci.High)
	assert.Greater(t, ci.Low, 2.0)
	assert.Less(t, ci.High, 9.0)
	assert.InDelta(t, 5.5, ci.Median, 1.0)
}

func TestBootstrapCIDeterministicForSeed(t *testing.T) {
	values := []float64{0.3, -0.1, 0.7, 0.2, 0.5}

	first, err := BootstrapCI(values, 800, rand.New(rand.NewSource(9)))
	require.NoError(t, err)
	second, err := BootstrapCI(values, 800, rand.New(rand.NewSource(9)))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
