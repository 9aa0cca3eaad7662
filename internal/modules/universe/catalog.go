// Package universe maintains the symbol catalog: which securities exist, which
// GICS sector each belongs to, and the deterministic selection rules built on
// top of the catalog.
package universe

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/trellis/internal/database"
)

// Security is one catalog entry.
type Security struct {
	Symbol    string `json:"symbol"`
	Name      string `json:"name"`
	Sector    string `json:"sector"`
	DateAdded string `json:"date_added,omitempty"` // YYYY-MM-DD, may be empty
}

// CatalogRepository handles catalog reads and writes on the universe database.
type CatalogRepository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewCatalogRepository creates a catalog repository.
func NewCatalogRepository(db *database.DB, log zerolog.Logger) *CatalogRepository {
	return &CatalogRepository{
		db:  db,
		log: log.With().Str("repo", "catalog").Logger(),
	}
}

// Count returns the number of catalog entries.
func (r *CatalogRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM securities").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count securities: %w", err)
	}
	return count, nil
}

// ReplaceAll replaces the whole catalog in one transaction.
func (r *CatalogRepository) ReplaceAll(ctx context.Context, securities []Security) error {
	err := database.WithTransaction(r.db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM securities"); err != nil {
			return fmt.Errorf("failed to clear securities: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			"INSERT INTO securities (symbol, name, sector, date_added) VALUES (?, ?, ?, ?)")
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, sec := range securities {
			if _, err := stmt.ExecContext(ctx, sec.Symbol, sec.Name, sec.Sector, sec.DateAdded); err != nil {
				return fmt.Errorf("failed to insert security %s: %w", sec.Symbol, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Info().Int("count", len(securities)).Msg("Catalog replaced")
	return nil
}

// ListSectors returns all distinct sectors, alphabetical.
func (r *CatalogRepository) ListSectors(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT DISTINCT sector FROM securities ORDER BY sector")
	if err != nil {
		return nil, fmt.Errorf("failed to query sectors: %w", err)
	}
	defer rows.Close()

	var sectors []string
	for rows.Next() {
		var sector string
		if err := rows.Scan(&sector); err != nil {
			return nil, fmt.Errorf("failed to scan sector: %w", err)
		}
		sectors = append(sectors, sector)
	}
	return sectors, rows.Err()
}

// ListSymbols returns all symbols in a sector, alphabetical. The ordering is
// load-bearing: symbol sampling and substitution both assume a stable catalog
// order.
func (r *CatalogRepository) ListSymbols(ctx context.Context, sector string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT symbol FROM securities WHERE sector = ? ORDER BY symbol", sector)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols for sector %s: %w", sector, err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, symbol)
	}
	return symbols, rows.Err()
}

// GetBySymbol returns one catalog entry, or nil when absent.
func (r *CatalogRepository) GetBySymbol(ctx context.Context, symbol string) (*Security, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT symbol, name, sector, date_added FROM securities WHERE symbol = ?",
		strings.ToUpper(strings.TrimSpace(symbol)))

	var sec Security
	if err := row.Scan(&sec.Symbol, &sec.Name, &sec.Sector, &sec.DateAdded); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan security: %w", err)
	}
	return &sec, nil
}

// All returns every catalog entry ordered by sector then symbol.
func (r *CatalogRepository) All(ctx context.Context) ([]Security, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT symbol, name, sector, date_added FROM securities ORDER BY sector, symbol")
	if err != nil {
		return nil, fmt.Errorf("failed to query securities: %w", err)
	}
	defer rows.Close()

	var securities []Security
	for rows.Next() {
		var sec Security
		if err := rows.Scan(&sec.Symbol, &sec.Name, &sec.Sector, &sec.DateAdded); err != nil {
			return nil, fmt.Errorf("failed to scan security: %w", err)
		}
		securities = append(securities, sec)
	}
	return securities, rows.Err()
}
