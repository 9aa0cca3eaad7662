package testing

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"time"

	"github.com/aristath/trellis/internal/domain"
	"github.com/aristath/trellis/internal/modules/market_hours"
)

// FixtureProvider is a deterministic in-memory implementation of
// domain.PriceSeriesProvider for tests. Prices follow a one-factor model:
// every symbol shares a common drift and scales the market's centered daily
// shock by a per-symbol beta, plus idiosyncratic noise. All randomness is
// derived from hashes of the symbol and date, so the same symbol and window
// always produce the same series, across processes and regardless of call
// order, and trial pipelines built on it are reproducible end to end.
//
// The benchmark symbol carries the market stream with beta one and no
// idiosyncratic term. That keeps regressions against the benchmark
// meaningful: portfolio betas land near the weighted symbol betas and
// R-squared stays high. The drift dominates sample-mean noise over a
// two-year window, so tangency weights on clean fixture data come out
// positive.
//
// The provider is stateless after construction and safe for concurrent use.
type FixtureProvider struct {
	// Sectors maps sector name to its symbols.
	Sectors map[string][]string

	// Benchmark is the symbol serving as the pure market factor.
	Benchmark string

	// ListedFrom optionally delays a symbol's first trading day past Epoch,
	// to exercise insufficient-data rejection and substitution.
	ListedFrom map[string]time.Time

	// Clones maps a symbol to the symbol whose price path it duplicates.
	// Two clones in one optimization produce a singular covariance matrix.
	Clones map[string]string

	// Errors maps a symbol to an error its PriceSeries call returns verbatim.
	Errors map[string]error

	// Epoch is the first simulated trading day for all symbols.
	Epoch time.Time

	MarketDrift float64 // mean daily return shared by every symbol
	MarketVol   float64 // daily volatility of the common market shock
	IdioVol     float64 // daily idiosyncratic volatility per symbol

	calendar *market_hours.Calendar
}

// NewFixtureProvider builds a provider over the given sector map with drift
// and volatility defaults tuned so sample means over a two-year window
// dominate sampling noise.
func NewFixtureProvider(sectors map[string][]string) *FixtureProvider {
	return &FixtureProvider{
		Sectors:     sectors,
		Benchmark:   "SPY",
		ListedFrom:  map[string]time.Time{},
		Clones:      map[string]string{},
		Errors:      map[string]error{},
		Epoch:       time.Date(2016, 1, 4, 0, 0, 0, 0, time.UTC),
		MarketDrift: 0.0012,
		MarketVol:   0.005,
		IdioVol:     0.003,
		calendar:    market_hours.NewCalendar(),
	}
}

// NewDefaultFixtureProvider builds a provider over the security fixtures'
// sectors.
func NewDefaultFixtureProvider() *FixtureProvider {
	sectors := map[string][]string{}
	for _, sec := range NewSecurityFixtures() {
		sectors[sec.Sector] = append(sectors[sec.Sector], sec.Symbol)
	}
	return NewFixtureProvider(sectors)
}

// ListSymbols returns the sector's symbols in alphabetical order. An unknown
// sector yields an empty result, matching the catalog repository.
func (p *FixtureProvider) ListSymbols(_ context.Context, sector string) ([]string, error) {
	symbols := make([]string, len(p.Sectors[sector]))
	copy(symbols, p.Sectors[sector])
	sort.Strings(symbols)
	return symbols, nil
}

// ListSectors returns all sector names, alphabetical.
func (p *FixtureProvider) ListSectors(_ context.Context) ([]string, error) {
	sectors := make([]string, 0, len(p.Sectors))
	for sector := range p.Sectors {
		sectors = append(sectors, sector)
	}
	sort.Strings(sectors)
	return sectors, nil
}

// PriceSeries simulates the symbol's daily closes over [start, end) and
// applies the same sufficiency rule as the production provider: fewer trading
// days than the calendar requires (minus a two-day tolerance) fails with
// domain.ErrInsufficientData.
func (p *FixtureProvider) PriceSeries(_ context.Context, symbol string, start, end time.Time) (domain.PriceSeries, error) {
	if err := p.Errors[symbol]; err != nil {
		return domain.PriceSeries{}, err
	}

	source := symbol
	if original, ok := p.Clones[symbol]; ok {
		source = original
	}

	start = dayUTC(start)
	end = dayUTC(end)
	listed := p.Epoch
	if t, ok := p.ListedFrom[symbol]; ok {
		listed = dayUTC(t)
	}

	// Walk the calendar from the epoch so the price path is identical no
	// matter which window is requested.
	price := p.basePrice(source)
	var dates []time.Time
	var closes []float64
	for d := p.Epoch; d.Before(end); d = d.AddDate(0, 0, 1) {
		if !p.calendar.IsTradingDay(d) {
			continue
		}
		price *= 1 + p.dailyReturn(source, d)
		if !d.Before(start) && !d.Before(listed) {
			dates = append(dates, d)
			closes = append(closes, price)
		}
	}

	required := p.calendar.TradingDays(start, end) - 2
	if required < 1 {
		required = 1
	}
	if len(closes) < required {
		return domain.PriceSeries{}, fmt.Errorf(
			"%s has %d of %d required trading days in [%s, %s): %w",
			symbol, len(closes), required,
			start.Format("2006-01-02"), end.Format("2006-01-02"),
			domain.ErrInsufficientData,
		)
	}

	return domain.PriceSeries{Symbol: symbol, Dates: dates, Closes: closes}, nil
}

// Beta returns the market exposure the one-factor model assigns to a symbol.
func (p *FixtureProvider) Beta(symbol string) float64 {
	if symbol == p.Benchmark {
		return 1
	}
	if original, ok := p.Clones[symbol]; ok {
		symbol = original
	}
	return 0.5 + float64(hash64(symbol)%101)/100
}

func (p *FixtureProvider) dailyReturn(symbol string, d time.Time) float64 {
	shock := p.MarketVol * gauss("market", d)
	if symbol == p.Benchmark {
		return p.MarketDrift + shock
	}
	return p.MarketDrift + p.Beta(symbol)*shock + p.IdioVol*gauss(symbol, d)
}

func (p *FixtureProvider) basePrice(symbol string) float64 {
	if symbol == p.Benchmark {
		return 200
	}
	return 20 + float64(hash64(symbol)%180)
}

// gauss derives a standard normal deviate from the hash of a tag and date via
// the Box-Muller transform.
func gauss(tag string, d time.Time) float64 {
	h := hash64(fmt.Sprintf("%s|%d", tag, d.Unix()))
	u1 := (float64(h>>32) + 0.5) / 4294967296.0
	u2 := (float64(h&0xffffffff) + 0.5) / 4294967296.0
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}

func hash64(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

func dayUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
