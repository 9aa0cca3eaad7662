package statistics

import (
	"fmt"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/aristath/trellis/internal/domain"
)

// DefaultBootstrapRounds is the resample count used when the caller does not
// configure one. Percentile estimates are stable from about a thousand rounds.
const DefaultBootstrapRounds = 1000

// BootstrapCI estimates the 95% percentile confidence interval for the mean
// of values by resampling with replacement. Low/Median/High are the
// 2.5th/50th/97.5th percentiles of the resampled means. A constant input
// yields that constant in all three positions. Fewer than two values cannot
// be resampled meaningfully.
func BootstrapCI(values []float64, rounds int, rng *rand.Rand) (domain.ConfidenceInterval, error) {
	if len(values) < 2 {
		return domain.ConfidenceInterval{}, fmt.Errorf(
			"bootstrap needs at least 2 values, got %d: %w", len(values), domain.ErrInsufficientSampleSize)
	}
	if rounds < 1 {
		rounds = DefaultBootstrapRounds
	}

	means := make([]float64, rounds)
	sample := make([]float64, len(values))
	for i := range means {
		for j := range sample {
			sample[j] = values[rng.Intn(len(values))]
		}
		means[i] = stat.Mean(sample, nil)
	}
	sort.Float64s(means)

	return domain.ConfidenceInterval{
		Low:    stat.Quantile(0.025, stat.Empirical, means, nil),
		Median: stat.Quantile(0.5, stat.Empirical, means, nil),
		High:   stat.Quantile(0.975, stat.Empirical, means, nil),
	}, nil
}
