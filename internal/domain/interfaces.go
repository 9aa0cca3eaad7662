package domain

import (
	"context"
	"time"
)

// PriceSeriesProvider abstracts symbol discovery and daily price history.
// Implementations: the universe catalog (symbol listing), the Yahoo client
// (live history), and the caching decorator that layers the history DB over
// a live provider. Trials depend only on this interface so tests can swap in
// deterministic fixtures.
type PriceSeriesProvider interface {
	// ListSymbols returns all known symbols for a sector in alphabetical
	// order. Deterministic ordering is load-bearing: random sampling and
	// substitution both derive from this slice.
	ListSymbols(ctx context.Context, sector string) ([]string, error)

	// PriceSeries returns adjusted daily closes in [start, end), ascending
	// by date. A series covering fewer trading days than the window requires
	// fails with ErrInsufficientData; the caller substitutes another symbol.
	PriceSeries(ctx context.Context, symbol string, start, end time.Time) (PriceSeries, error)
}
