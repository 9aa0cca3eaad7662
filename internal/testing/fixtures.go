package testing

import (
	"time"

	"github.com/aristath/trellis/internal/domain"
	"github.com/aristath/trellis/internal/modules/universe"
)

// NewSecurityFixtures returns a small catalog spanning three sectors for use
// in tests. Symbols within each sector are alphabetical, matching the
// ordering contract of the catalog repository.
func NewSecurityFixtures() []universe.Security {
	return []universe.Security{
		{Symbol: "AAPL", Name: "Apple Inc.", Sector: "Information Technology", DateAdded: "1982-11-30"},
		{Symbol: "MSFT", Name: "Microsoft Corporation", Sector: "Information Technology", DateAdded: "1994-06-01"},
		{Symbol: "NVDA", Name: "Nvidia Corporation", Sector: "Information Technology", DateAdded: "2001-11-30"},
		{Symbol: "ORCL", Name: "Oracle Corporation", Sector: "Information Technology", DateAdded: "1989-08-31"},
		{Symbol: "CVX", Name: "Chevron Corporation", Sector: "Energy", DateAdded: "1957-03-04"},
		{Symbol: "SLB", Name: "Schlumberger Limited", Sector: "Energy", DateAdded: "1965-03-31"},
		{Symbol: "XOM", Name: "Exxon Mobil Corporation", Sector: "Energy", DateAdded: "1957-03-04"},
		{Symbol: "JNJ", Name: "Johnson & Johnson", Sector: "Health Care", DateAdded: "1973-06-30"},
		{Symbol: "MRK", Name: "Merck & Co.", Sector: "Health Care", DateAdded: "1957-03-04"},
		{Symbol: "PFE", Name: "Pfizer Inc.", Sector: "Health Care", DateAdded: "1957-03-04"},
	}
}

// NewExperimentFixture returns an experiment configuration aligned with the
// windows the fixture provider covers: two in-sample years followed by one
// out-of-sample year.
func NewExperimentFixture() domain.ExperimentConfig {
	return domain.ExperimentConfig{
		Name:            "fixture",
		Cash:            1_000_000,
		NumSymbols:      2,
		Sectors:         []string{"Energy", "Information Technology"},
		InSampleStart:   time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC),
		InSampleEnd:     time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC),
		OutSampleStart:  time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC),
		OutSampleEnd:    time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		Benchmark:       "SPY",
		AnnualRiskFree:  0.05,
		Diagonalize:     true,
		BaseSeed:        1,
		Trials:          4,
		BootstrapRounds: 50,
		Workers:         2,
	}
}

// NewCompletedTrialFixture returns a finished trial record whose metrics vary
// with the seed, so batches of fixtures produce non-degenerate summaries.
func NewCompletedTrialFixture(seed int64) domain.TrialRecord {
	spread := float64(seed % 7)
	return domain.TrialRecord{
		Seed:  seed,
		State: domain.TrialStateDone,
		Sectors: []domain.SectorSelection{
			{Sector: "Energy", Requested: 2, Symbols: []string{"CVX", "XOM"}},
			{Sector: "Information Technology", Requested: 2, Symbols: []string{"AAPL", "MSFT"}},
		},
		Variants: map[string]string{"CVX": "HOLD", "XOM": "MACD", "AAPL": "HOLD", "MSFT": "HOLD"},
		SectorWeights: map[string]float64{
			"Energy":                 0.45,
			"Information Technology": 0.55,
		},
		SymbolWeights: map[string]map[string]float64{
			"Energy":                 {"CVX": 0.3, "XOM": 0.7},
			"Information Technology": {"AAPL": 0.52, "MSFT": 0.48},
		},
		InSample: domain.PeriodMetrics{
			Sharpe:          1.1 + 0.05*spread,
			Profit:          180_000 + 20_000*spread,
			BenchmarkProfit: 150_000,
			Regression: domain.RegressionStats{
				Alpha: 0.0002, Beta: 0.9 + 0.02*spread, RSquared: 0.9,
				Treynor: 0.001, InformationRatio: 0.05,
			},
		},
		OutSample: domain.PeriodMetrics{
			Sharpe:          0.6 + 0.08*spread,
			Profit:          40_000 + 15_000*spread,
			BenchmarkProfit: 60_000,
			Regression: domain.RegressionStats{
				Alpha: -0.0001, Beta: 0.85 + 0.03*spread, RSquared: 0.82,
				Treynor: 0.0008, InformationRatio: -0.02,
			},
		},
		ElapsedMS: 120 + 10*(seed%5),
	}
}

// NewDiscardedTrialFixture returns a trial that failed at the given stage.
func NewDiscardedTrialFixture(seed int64, stage domain.TrialState, reason string) domain.TrialRecord {
	return domain.TrialRecord{
		Seed:        seed,
		State:       domain.TrialStateDiscarded,
		FailedStage: stage,
		Error:       reason,
		Sectors: []domain.SectorSelection{
			{Sector: "Energy", Requested: 2, Symbols: []string{"CVX", "XOM"}},
		},
		ElapsedMS: 15,
	}
}
