package historical

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/trellis/internal/domain"
)

// SeriesCache stores whole price series as msgpack blobs keyed by the exact
// request window, so repeated trials reload a window without touching the
// per-bar table.
type SeriesCache struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSeriesCache creates a series cache on the history database connection.
func NewSeriesCache(db *sql.DB, log zerolog.Logger) *SeriesCache {
	return &SeriesCache{
		db:  db,
		log: log.With().Str("component", "series_cache").Logger(),
	}
}

// cachedSeries is the msgpack payload layout. Dates are Unix timestamps.
type cachedSeries struct {
	Symbol string    `msgpack:"symbol"`
	Dates  []int64   `msgpack:"dates"`
	Closes []float64 `msgpack:"closes"`
}

// Get returns the cached series for an exact window, if present.
func (c *SeriesCache) Get(symbol string, start, end time.Time) (domain.PriceSeries, bool, error) {
	var payload []byte
	err := c.db.QueryRow(
		"SELECT payload FROM series_cache WHERE symbol = ? AND window_start = ? AND window_end = ?",
		symbol, midnightUTC(start).Unix(), midnightUTC(end).Unix(),
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return domain.PriceSeries{}, false, nil
	}
	if err != nil {
		return domain.PriceSeries{}, false, fmt.Errorf("failed to query series cache: %w", err)
	}

	var cached cachedSeries
	if err := msgpack.Unmarshal(payload, &cached); err != nil {
		// Corrupt payload: drop the row and treat as a miss.
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("Dropping undecodable series cache entry")
		_, _ = c.db.Exec(
			"DELETE FROM series_cache WHERE symbol = ? AND window_start = ? AND window_end = ?",
			symbol, midnightUTC(start).Unix(), midnightUTC(end).Unix(),
		)
		return domain.PriceSeries{}, false, nil
	}

	series := domain.PriceSeries{
		Symbol: cached.Symbol,
		Dates:  make([]time.Time, len(cached.Dates)),
		Closes: cached.Closes,
	}
	for i, unix := range cached.Dates {
		series.Dates[i] = time.Unix(unix, 0).UTC()
	}
	return series, true, nil
}

// Put stores a series under an exact window key.
func (c *SeriesCache) Put(symbol string, start, end time.Time, series domain.PriceSeries) error {
	cached := cachedSeries{
		Symbol: series.Symbol,
		Dates:  make([]int64, len(series.Dates)),
		Closes: series.Closes,
	}
	for i, d := range series.Dates {
		cached.Dates[i] = midnightUTC(d).Unix()
	}

	payload, err := msgpack.Marshal(&cached)
	if err != nil {
		return fmt.Errorf("failed to encode series for %s: %w", symbol, err)
	}

	_, err = c.db.Exec(`
		INSERT OR REPLACE INTO series_cache (symbol, window_start, window_end, payload, fetched_at)
		VALUES (?, ?, ?, ?, strftime('%s', 'now'))
	`, symbol, midnightUTC(start).Unix(), midnightUTC(end).Unix(), payload)
	if err != nil {
		return fmt.Errorf("failed to store series for %s: %w", symbol, err)
	}

	return nil
}

// PurgeOlderThan removes cache entries fetched before the threshold.
// Used by maintenance to keep the table from growing without bound.
func (c *SeriesCache) PurgeOlderThan(threshold time.Time) (int64, error) {
	result, err := c.db.Exec("DELETE FROM series_cache WHERE fetched_at < ?", threshold.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge series cache: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		c.log.Info().
			Int64("rows_deleted", rowsAffected).
			Time("older_than", threshold).
			Msg("Purged stale series cache entries")
	}
	return rowsAffected, nil
}
