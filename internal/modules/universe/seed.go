package universe

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/trellis/pkg/embedded"
)

// DefaultCutoff excludes constituents added to the index after this date, so
// every seeded symbol has history across the usual study windows. Symbols that
// still lack data are handled later by substitution.
var DefaultCutoff = time.Date(2016, time.January, 1, 0, 0, 0, 0, time.UTC)

// excludedSymbols are tickers with known-broken Yahoo history (renames,
// relistings) that substitution would churn on.
var excludedSymbols = map[string]bool{
	"FOX":  true,
	"FOXA": true,
	"TT":   true,
}

// LoadConstituents parses the embedded S&P 500 constituents file into catalog
// entries. Share-class dots become dashes (BRK.B -> BRK-B, the Yahoo
// convention), excluded tickers are dropped, and so is anything added to the
// index after the cutoff.
func LoadConstituents(cutoff time.Time) ([]Security, error) {
	f, err := embedded.Files.Open(embedded.ConstituentsCSV)
	if err != nil {
		return nil, fmt.Errorf("failed to open constituents file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read constituents header: %w", err)
	}
	if len(header) < 4 || header[0] != "symbol" {
		return nil, fmt.Errorf("unexpected constituents header: %v", header)
	}

	var securities []Security
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read constituents row: %w", err)
		}

		symbol := NormalizeSymbol(record[0])
		if symbol == "" || excludedSymbols[symbol] {
			continue
		}

		sector := strings.TrimSpace(record[2])
		if sector == "" {
			continue
		}

		dateAdded := strings.TrimSpace(record[3])
		if dateAdded != "" {
			added, err := time.Parse("2006-01-02", dateAdded)
			if err != nil {
				return nil, fmt.Errorf("bad date_added %q for %s: %w", dateAdded, symbol, err)
			}
			if added.After(cutoff) {
				continue
			}
		}

		securities = append(securities, Security{
			Symbol:    symbol,
			Name:      strings.TrimSpace(record[1]),
			Sector:    sector,
			DateAdded: dateAdded,
		})
	}

	return securities, nil
}

// NormalizeSymbol uppercases a ticker and maps share-class dots to dashes.
func NormalizeSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	return strings.ReplaceAll(symbol, ".", "-")
}

// EnsureSeeded populates the catalog from the embedded constituents file when
// it is empty. Safe to call on every startup.
func EnsureSeeded(ctx context.Context, repo *CatalogRepository, log zerolog.Logger) error {
	count, err := repo.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		log.Debug().Int("count", count).Msg("Catalog already seeded")
		return nil
	}

	securities, err := LoadConstituents(DefaultCutoff)
	if err != nil {
		return fmt.Errorf("failed to load constituents: %w", err)
	}

	if err := repo.ReplaceAll(ctx, securities); err != nil {
		return fmt.Errorf("failed to seed catalog: %w", err)
	}

	log.Info().Int("count", len(securities)).Msg("Catalog seeded from embedded constituents")
	return nil
}
