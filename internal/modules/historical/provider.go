package historical

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/trellis/internal/domain"
	"github.com/aristath/trellis/internal/modules/market_hours"
	"github.com/aristath/trellis/internal/modules/universe"
)

// Source fetches daily bars from a market-data service.
type Source interface {
	FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.PriceBar, error)
}

// BatchSource is implemented by sources that can download several symbols in
// one request.
type BatchSource interface {
	FetchBarsBatch(ctx context.Context, symbols []string, start, end time.Time) (map[string][]domain.PriceBar, map[string]error, error)
}

// sufficiencyTolerance is how many trading days a series may fall short of
// the calendar count before it is rejected as insufficient. Covers partial
// sessions and very recent listings without letting gappy series through.
const sufficiencyTolerance = 2

// Provider serves price series from the history database, filling it from the
// source on miss. Source downloads are bounded by a concurrency limit since
// the market-data service is shared and rate limited. Implements
// domain.PriceSeriesProvider.
type Provider struct {
	catalog   *universe.CatalogRepository
	source    Source
	store     *PriceStore
	cache     *SeriesCache
	calendar  *market_hours.Calendar
	sem       chan struct{}
	cacheOnly bool
	log       zerolog.Logger
}

// ProviderOptions configure source access.
type ProviderOptions struct {
	MaxConcurrent int  // concurrent source downloads, min 1
	CacheOnly     bool // never hit the source; a cold cache is insufficient data
}

// NewProvider creates the caching price-series provider.
func NewProvider(
	catalog *universe.CatalogRepository,
	source Source,
	store *PriceStore,
	cache *SeriesCache,
	calendar *market_hours.Calendar,
	opts ProviderOptions,
	log zerolog.Logger,
) *Provider {
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	return &Provider{
		catalog:   catalog,
		source:    source,
		store:     store,
		cache:     cache,
		calendar:  calendar,
		sem:       make(chan struct{}, opts.MaxConcurrent),
		cacheOnly: opts.CacheOnly,
		log:       log.With().Str("component", "price_provider").Logger(),
	}
}

// ListSymbols returns the catalog symbols for a sector, alphabetical.
func (p *Provider) ListSymbols(ctx context.Context, sector string) ([]string, error) {
	return p.catalog.ListSymbols(ctx, sector)
}

// PriceSeries returns the adjusted daily closes for [start, end). A series
// covering fewer trading days than the NYSE calendar requires (minus the
// tolerance) fails with ErrInsufficientData.
func (p *Provider) PriceSeries(ctx context.Context, symbol string, start, end time.Time) (domain.PriceSeries, error) {
	start = midnightUTC(start)
	end = midnightUTC(end)

	required := p.calendar.TradingDays(start, end) - sufficiencyTolerance
	if required < 1 {
		required = 1
	}

	if series, ok, err := p.cache.Get(symbol, start, end); err != nil {
		p.log.Warn().Err(err).Str("symbol", symbol).Msg("Series cache read failed")
	} else if ok && series.Len() >= required {
		return series, nil
	}

	bars, err := p.store.GetDailyPrices(symbol, start, end)
	if err != nil {
		return domain.PriceSeries{}, err
	}

	if len(bars) < required && !p.cacheOnly {
		fetched, fetchErr := p.fetch(ctx, symbol, start, end)
		switch {
		case fetchErr == nil:
			if err := p.store.SyncDailyPrices(symbol, fetched); err != nil {
				p.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to persist fetched bars")
			}
			bars = fetched
		case errors.Is(fetchErr, domain.ErrInsufficientData):
			// Fall through to the count check with whatever the store had.
		default:
			return domain.PriceSeries{}, fetchErr
		}
	}

	if len(bars) < required {
		return domain.PriceSeries{}, fmt.Errorf(
			"%s has %d of %d required trading days in [%s, %s): %w",
			symbol, len(bars), required,
			start.Format("2006-01-02"), end.Format("2006-01-02"),
			domain.ErrInsufficientData,
		)
	}

	series := domain.SeriesFromBars(symbol, bars)
	sanitizeCloses(series.Closes)
	if err := series.Validate(); err != nil {
		return domain.PriceSeries{}, err
	}

	if err := p.cache.Put(symbol, start, end, series); err != nil {
		p.log.Warn().Err(err).Str("symbol", symbol).Msg("Series cache write failed")
	}

	return series, nil
}

// Warm prefetches bars for symbols not yet covered in the store, using the
// source's batch download when available. Per-symbol failures are logged and
// counted rather than aborting the sweep; Warm reports how many symbols were
// fetched and how many failed.
func (p *Provider) Warm(ctx context.Context, symbols []string, start, end time.Time) (fetched, failed int, err error) {
	if p.cacheOnly {
		return 0, 0, nil
	}

	start = midnightUTC(start)
	end = midnightUTC(end)

	required := p.calendar.TradingDays(start, end) - sufficiencyTolerance
	if required < 1 {
		required = 1
	}

	var missing []string
	for _, symbol := range symbols {
		count, err := p.store.CountDailyPrices(symbol, start, end)
		if err != nil {
			return 0, 0, err
		}
		if count < required {
			missing = append(missing, symbol)
		}
	}
	if len(missing) == 0 {
		return 0, 0, nil
	}

	if batch, ok := p.source.(BatchSource); ok {
		if err := p.acquire(ctx); err != nil {
			return 0, 0, err
		}
		barsBySymbol, errsBySymbol, err := batch.FetchBarsBatch(ctx, missing, start, end)
		p.release()
		if err != nil {
			return 0, 0, err
		}
		for symbol, bars := range barsBySymbol {
			if err := p.store.SyncDailyPrices(symbol, bars); err != nil {
				p.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to persist warmed bars")
				failed++
				continue
			}
			fetched++
		}
		for symbol, symErr := range errsBySymbol {
			p.log.Warn().Err(symErr).Str("symbol", symbol).Msg("Warm fetch failed for symbol")
			failed++
		}
		return fetched, failed, nil
	}

	for _, symbol := range missing {
		if _, err := p.PriceSeries(ctx, symbol, start, end); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return fetched, failed, err
			}
			p.log.Warn().Err(err).Str("symbol", symbol).Msg("Warm fetch failed for symbol")
			failed++
			continue
		}
		fetched++
	}
	return fetched, failed, nil
}

// fetch downloads bars under the concurrency bound.
func (p *Provider) fetch(ctx context.Context, symbol string, start, end time.Time) ([]domain.PriceBar, error) {
	if err := p.acquire(ctx); err != nil {
		return nil, err
	}
	defer p.release()
	return p.source.FetchBars(ctx, symbol, start, end)
}

func (p *Provider) acquire(ctx context.Context) error {
	select {
	case p.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Provider) release() {
	<-p.sem
}

// sanitizeCloses forward-fills non-positive or NaN closes, then back-fills any
// bad leading run, so downstream return math never divides by zero.
func sanitizeCloses(closes []float64) {
	last := math.NaN()
	for i, c := range closes {
		if c > 0 && !math.IsNaN(c) {
			last = c
			continue
		}
		if !math.IsNaN(last) {
			closes[i] = last
		}
	}

	next := math.NaN()
	for i := len(closes) - 1; i >= 0; i-- {
		c := closes[i]
		if c > 0 && !math.IsNaN(c) {
			next = c
			continue
		}
		if !math.IsNaN(next) {
			closes[i] = next
		}
	}
}
