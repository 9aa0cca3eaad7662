// Package trials builds randomized hierarchically-diversified portfolios and
// evaluates them out of sample. One trial draws symbols per sector with a
// seeded RNG, picks each symbol's best strategy in sample, computes tangency
// weights inside each sector and then across sectors, and finally replays the
// frozen portfolio over the out-of-sample window. Batches of trials run on a
// worker pool and land in the results database.
package trials

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/trellis/internal/domain"
	"github.com/aristath/trellis/internal/modules/backtest"
	"github.com/aristath/trellis/internal/modules/optimization"
	"github.com/aristath/trellis/internal/modules/universe"
)

// Builder runs single portfolio trials through the stage pipeline.
type Builder struct {
	provider  domain.PriceSeriesProvider
	optimizer *optimization.Optimizer
	log       zerolog.Logger
}

// NewBuilder creates a trial builder.
func NewBuilder(provider domain.PriceSeriesProvider, optimizer *optimization.Optimizer, log zerolog.Logger) *Builder {
	return &Builder{
		provider:  provider,
		optimizer: optimizer,
		log:       log.With().Str("component", "trial_builder").Logger(),
	}
}

// trial carries the working state of one run through the stages.
type trial struct {
	builder   *Builder
	exp       domain.ExperimentConfig
	evaluator *backtest.Evaluator
	dailyRF   float64
	rng       *rand.Rand
	used      map[string]bool

	record           domain.TrialRecord
	inSeries         map[string]domain.PriceSeries
	outSeries        map[string]domain.PriceSeries
	inBest           map[string]backtest.Result
	sectorComposites []domain.ValuationSeries // indexed like record.Sectors
}

// Run executes one trial for the given seed. A stage failure discards the
// trial: the record keeps the failed stage and error instead of fabricated
// metrics. Run never returns an error; the record's State tells the outcome.
func (b *Builder) Run(ctx context.Context, exp domain.ExperimentConfig, seed int64) domain.TrialRecord {
	started := time.Now()

	t := &trial{
		builder:   b,
		exp:       exp,
		evaluator: backtest.NewEvaluator(exp.AnnualRiskFree, backtest.DefaultMACDParams, b.log),
		dailyRF:   domain.DailyRiskFree(exp.AnnualRiskFree),
		rng:       rand.New(rand.NewSource(seed)),
		used:      make(map[string]bool),
		inSeries:  make(map[string]domain.PriceSeries),
		outSeries: make(map[string]domain.PriceSeries),
		inBest:    make(map[string]backtest.Result),
	}
	t.record = domain.TrialRecord{
		Seed:          seed,
		Variants:      make(map[string]string),
		SectorWeights: make(map[string]float64),
		SymbolWeights: make(map[string]map[string]float64),
	}

	stages := []struct {
		state domain.TrialState
		run   func(context.Context) error
	}{
		{domain.TrialStateSelectSymbols, t.selectSymbols},
		{domain.TrialStatePerSymbolStrategy, t.evaluateStrategies},
		{domain.TrialStateSectorOptimize, t.optimizeSectors},
		{domain.TrialStateSectorBacktest, t.backtestSectors},
		{domain.TrialStatePortfolioOptimize, t.optimizePortfolio},
		{domain.TrialStateOutOfSampleEval, t.evaluateOutOfSample},
	}

	t.record.State = domain.TrialStateDone
	for _, stage := range stages {
		if err := stage.run(ctx); err != nil {
			b.log.Warn().
				Int64("seed", seed).
				Str("stage", string(stage.state)).
				Err(err).
				Msg("Trial discarded")
			t.record.State = domain.TrialStateDiscarded
			t.record.FailedStage = stage.state
			t.record.Error = err.Error()
			break
		}
	}

	t.record.ElapsedMS = time.Since(started).Milliseconds()
	return t.record
}

// selectSymbols draws the per-sector symbol sets and ensures both sample
// windows have sufficient data for every pick, substituting rejected symbols
// deterministically.
func (t *trial) selectSymbols(ctx context.Context) error {
	if len(t.exp.Sectors) == 0 {
		return errors.New("no sectors configured")
	}
	if t.exp.NumSymbols < 1 {
		return fmt.Errorf("num_symbols %d must be at least 1", t.exp.NumSymbols)
	}

	for _, sector := range t.exp.Sectors {
		sel, err := t.selectSector(ctx, sector)
		t.record.Sectors = append(t.record.Sectors, sel)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *trial) selectSector(ctx context.Context, sector string) (domain.SectorSelection, error) {
	sel := domain.SectorSelection{Sector: sector, Requested: t.exp.NumSymbols}

	candidates, err := t.builder.provider.ListSymbols(ctx, sector)
	if err != nil {
		return sel, fmt.Errorf("listing symbols for sector %s: %w", sector, err)
	}
	if len(candidates) == 0 {
		return sel, fmt.Errorf("sector %s has no catalog symbols: %w", sector, domain.ErrInsufficientData)
	}
	sel.Capped = len(candidates) < t.exp.NumSymbols

	picked := universe.SampleSymbols(t.rng, candidates, t.exp.NumSymbols)
	for _, symbol := range picked {
		t.used[symbol] = true
	}

	var kept []string
	for _, symbol := range picked {
		final, removed, err := t.ensureSymbol(ctx, symbol, candidates)
		sel.Removed = append(sel.Removed, removed...)
		if err != nil {
			if errors.Is(err, domain.ErrInsufficientData) {
				// Candidates exhausted for this slot: the sector proceeds
				// with fewer symbols, like an undersized catalog.
				sel.Capped = true
				continue
			}
			return sel, err
		}
		kept = append(kept, final)
	}
	sort.Strings(kept)
	sel.Symbols = kept

	if len(kept) == 0 {
		return sel, fmt.Errorf("sector %s: no symbol has sufficient data in both windows: %w",
			sector, domain.ErrInsufficientData)
	}
	return sel, nil
}

// ensureSymbol fetches both windows for a symbol, walking the deterministic
// substitution chain on insufficient data. Returns the surviving symbol and
// every rejected one, or ErrInsufficientData when the chain runs dry.
func (t *trial) ensureSymbol(ctx context.Context, symbol string, candidates []string) (string, []string, error) {
	var removed []string
	for {
		err := t.fetchWindows(ctx, symbol)
		if err == nil {
			return symbol, removed, nil
		}
		if !errors.Is(err, domain.ErrInsufficientData) {
			return "", removed, err
		}

		t.builder.log.Warn().
			Int64("seed", t.record.Seed).
			Str("symbol", symbol).
			Err(err).
			Msg("Symbol lacks required data, substituting")
		removed = append(removed, symbol)

		next, ok := universe.NextCandidate(candidates, t.used)
		if !ok {
			return "", removed, fmt.Errorf("no substitute left after %s: %w", symbol, domain.ErrInsufficientData)
		}
		t.used[next] = true
		symbol = next
	}
}

func (t *trial) fetchWindows(ctx context.Context, symbol string) error {
	inSeries, err := t.builder.provider.PriceSeries(ctx, symbol, t.exp.InSampleStart, t.exp.InSampleEnd)
	if err != nil {
		return err
	}
	outSeries, err := t.builder.provider.PriceSeries(ctx, symbol, t.exp.OutSampleStart, t.exp.OutSampleEnd)
	if err != nil {
		return err
	}
	t.inSeries[symbol] = inSeries
	t.outSeries[symbol] = outSeries
	return nil
}

// evaluateStrategies picks every symbol's best strategy over the in-sample
// window. Each candidate runs with the full configured cash: Sharpe drives the
// selection and is nearly scale-free, so the eventual allocation does not
// change which variant wins.
func (t *trial) evaluateStrategies(_ context.Context) error {
	for _, sel := range t.record.Sectors {
		for _, symbol := range sel.Symbols {
			best, _ := t.evaluator.Evaluate(t.inSeries[symbol], t.exp.Cash)
			t.record.Variants[symbol] = best.Variant
			t.inBest[symbol] = best
		}
	}
	return nil
}

// optimizeSectors computes tangency weights over each sector's winning
// valuation series.
func (t *trial) optimizeSectors(_ context.Context) error {
	for _, sel := range t.record.Sectors {
		legs := make([]domain.ValuationSeries, len(sel.Symbols))
		for i, symbol := range sel.Symbols {
			legs[i] = t.inBest[symbol].Valuation
		}
		aligned, err := alignValuations(legs)
		if err != nil {
			return fmt.Errorf("sector %s: %w", sel.Sector, err)
		}

		columns := make([][]float64, len(aligned))
		for i := range aligned {
			columns[i] = aligned[i].Returns()
		}
		weights, err := t.builder.optimizer.Tangency(columns, t.dailyRF, t.exp.Diagonalize)
		if err != nil {
			return fmt.Errorf("sector %s: %w", sel.Sector, err)
		}

		bySymbol := make(map[string]float64, len(weights))
		for i, symbol := range sel.Symbols {
			bySymbol[symbol] = weights[i]
		}
		t.record.SymbolWeights[sel.Sector] = bySymbol
	}
	return nil
}

// backtestSectors re-runs every symbol's winning variant with its weighted
// share of the sector's equal slice of cash and sums the legs into one
// composite valuation series per sector. Negative weights produce signed legs.
func (t *trial) backtestSectors(_ context.Context) error {
	equalShare := 1.0 / float64(len(t.record.Sectors))

	t.sectorComposites = make([]domain.ValuationSeries, len(t.record.Sectors))
	for i, sel := range t.record.Sectors {
		weights := t.record.SymbolWeights[sel.Sector]
		legs := make([]domain.ValuationSeries, len(sel.Symbols))
		for j, symbol := range sel.Symbols {
			allocation := t.exp.Cash * equalShare * weights[symbol]
			result := t.evaluator.EvaluateVariant(t.record.Variants[symbol], t.inSeries[symbol], allocation)
			legs[j] = result.Valuation
		}

		composite, err := sumValuations(legs)
		if err != nil {
			return fmt.Errorf("sector %s composite: %w", sel.Sector, err)
		}
		t.sectorComposites[i] = composite
	}
	return nil
}

// optimizePortfolio computes the cross-sector tangency weights from the
// sector composites, then evaluates the fully expanded portfolio in sample.
func (t *trial) optimizePortfolio(ctx context.Context) error {
	aligned, err := alignValuations(t.sectorComposites)
	if err != nil {
		return err
	}
	columns := make([][]float64, len(aligned))
	for i := range aligned {
		columns[i] = aligned[i].Returns()
	}
	weights, err := t.builder.optimizer.Tangency(columns, t.dailyRF, t.exp.Diagonalize)
	if err != nil {
		return err
	}
	for i, sel := range t.record.Sectors {
		t.record.SectorWeights[sel.Sector] = weights[i]
	}

	metrics, err := t.evaluateWindow(ctx, t.inSeries, t.exp.InSampleStart, t.exp.InSampleEnd)
	if err != nil {
		return err
	}
	t.record.InSample = metrics
	return nil
}

// evaluateOutOfSample replays the frozen portfolio over the out-of-sample
// window. The symbol set, variants, and weights are all fixed by now; only
// the price window changes.
func (t *trial) evaluateOutOfSample(ctx context.Context) error {
	metrics, err := t.evaluateWindow(ctx, t.outSeries, t.exp.OutSampleStart, t.exp.OutSampleEnd)
	if err != nil {
		return err
	}
	t.record.OutSample = metrics
	return nil
}
