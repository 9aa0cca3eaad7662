// Package historical caches daily price history and serves price series
// through a provider that fills the cache on miss.
package historical

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog"

	"github.com/aristath/trellis/internal/domain"
)

// OpenHistoryDB opens the history database file with the cgo SQLite driver.
// The price store and series cache run their bulk INSERT OR REPLACE batches
// on this connection; schema migration and health checks go through the
// database package wrapper instead.
func OpenHistoryDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}

	return db, nil
}

// PriceStore persists daily OHLCV bars in the history database.
type PriceStore struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPriceStore creates a price store on an open history database connection.
func NewPriceStore(db *sql.DB, log zerolog.Logger) *PriceStore {
	return &PriceStore{
		db:  db,
		log: log.With().Str("component", "price_store").Logger(),
	}
}

// SyncDailyPrices inserts or replaces a symbol's daily bars in a single
// transaction. Dates are stored as Unix timestamps at midnight UTC.
func (s *PriceStore) SyncDailyPrices(symbol string, bars []domain.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Will be no-op if Commit succeeds

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO daily_prices
		(symbol, date, open, high, low, close, volume, adjusted_close)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, bar := range bars {
		volume := sql.NullInt64{}
		if bar.Volume != nil {
			volume.Int64 = *bar.Volume
			volume.Valid = true
		}

		adjusted := bar.AdjClose
		if adjusted <= 0 {
			adjusted = bar.Close
		}

		dateUnix := midnightUTC(bar.Date).Unix()
		if _, err := stmt.Exec(symbol, dateUnix, bar.Open, bar.High, bar.Low, bar.Close, volume, adjusted); err != nil {
			return fmt.Errorf("failed to insert daily price for %s %s: %w", symbol, bar.Date.Format("2006-01-02"), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.Debug().
		Str("symbol", symbol).
		Int("count", len(bars)).
		Msg("Synced daily prices")

	return nil
}

// GetDailyPrices fetches a symbol's bars with start <= date < end, ascending.
func (s *PriceStore) GetDailyPrices(symbol string, start, end time.Time) ([]domain.PriceBar, error) {
	query := `
		SELECT date, open, high, low, close, volume, adjusted_close
		FROM daily_prices
		WHERE symbol = ? AND date >= ? AND date < ?
		ORDER BY date ASC
	`

	rows, err := s.db.Query(query, symbol, midnightUTC(start).Unix(), midnightUTC(end).Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	var bars []domain.PriceBar
	for rows.Next() {
		var bar domain.PriceBar
		var dateUnix int64
		var volume sql.NullInt64
		var adjusted sql.NullFloat64

		if err := rows.Scan(&dateUnix, &bar.Open, &bar.High, &bar.Low, &bar.Close, &volume, &adjusted); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}

		bar.Date = time.Unix(dateUnix, 0).UTC()
		if volume.Valid {
			bar.Volume = &volume.Int64
		}
		if adjusted.Valid {
			bar.AdjClose = adjusted.Float64
		}

		bars = append(bars, bar)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}

	return bars, nil
}

// CountDailyPrices returns how many bars are stored for start <= date < end.
func (s *PriceStore) CountDailyPrices(symbol string, start, end time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM daily_prices WHERE symbol = ? AND date >= ? AND date < ?",
		symbol, midnightUTC(start).Unix(), midnightUTC(end).Unix(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count daily prices: %w", err)
	}
	return count, nil
}

// CoverageBounds returns the first and last stored dates for a symbol.
// ok is false when nothing is stored.
func (s *PriceStore) CoverageBounds(symbol string) (first, last time.Time, ok bool, err error) {
	var lo, hi sql.NullInt64
	err = s.db.QueryRow(
		"SELECT MIN(date), MAX(date) FROM daily_prices WHERE symbol = ?", symbol,
	).Scan(&lo, &hi)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("failed to query coverage bounds: %w", err)
	}
	if !lo.Valid || !hi.Valid {
		return time.Time{}, time.Time{}, false, nil
	}
	return time.Unix(lo.Int64, 0).UTC(), time.Unix(hi.Int64, 0).UTC(), true, nil
}

func midnightUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
