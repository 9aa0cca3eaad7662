// Package handlers provides HTTP handlers for stored price history.
package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/trellis/internal/domain"
	"github.com/aristath/trellis/internal/events"
	"github.com/aristath/trellis/internal/modules/historical"
	"github.com/aristath/trellis/internal/modules/universe"
)

// Handlers serves price history reads and cache warming.
type Handlers struct {
	provider *historical.Provider
	store    *historical.PriceStore
	catalog  *universe.CatalogRepository
	events   *events.Manager
	log      zerolog.Logger
}

// New creates price history handlers. catalog may be nil, in which case warm
// requests must name their symbols; the events manager may be nil.
func New(provider *historical.Provider, store *historical.PriceStore, catalog *universe.CatalogRepository, em *events.Manager, log zerolog.Logger) *Handlers {
	return &Handlers{
		provider: provider,
		store:    store,
		catalog:  catalog,
		events:   em,
		log:      log.With().Str("handler", "historical").Logger(),
	}
}

// DailyPricesResponse carries one symbol's stored daily bars.
type DailyPricesResponse struct {
	Symbol string            `json:"symbol"`
	Bars   []domain.PriceBar `json:"bars"`
	Count  int               `json:"count"`
}

// CoverageResponse reports the stored date range for a symbol.
type CoverageResponse struct {
	Symbol string `json:"symbol"`
	First  string `json:"first"`
	Last   string `json:"last"`
}

// WarmRequest names what to prefetch. Symbols and Sectors combine; with
// neither, the whole catalog is warmed.
type WarmRequest struct {
	Symbols []string `json:"symbols"`
	Sectors []string `json:"sectors"`
	Start   string   `json:"start"` // YYYY-MM-DD
	End     string   `json:"end"`   // YYYY-MM-DD
}

// WarmResponse reports a warm sweep's outcome.
type WarmResponse struct {
	Requested int `json:"requested"`
	Fetched   int `json:"fetched"`
	Failed    int `json:"failed"`
}

// HandleGetDailyPrices handles GET /api/prices/{symbol}/daily. The window
// defaults to the last year; ?start= and ?end= (YYYY-MM-DD) override it.
func (h *Handlers) HandleGetDailyPrices(w http.ResponseWriter, r *http.Request, symbol string) {
	symbol = universe.NormalizeSymbol(symbol)

	end := time.Now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(-1, 0, 0)

	var err error
	if v := r.URL.Query().Get("start"); v != "" {
		if start, err = time.Parse("2006-01-02", v); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid start date, want YYYY-MM-DD")
			return
		}
	}
	if v := r.URL.Query().Get("end"); v != "" {
		if end, err = time.Parse("2006-01-02", v); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid end date, want YYYY-MM-DD")
			return
		}
	}

	bars, err := h.store.GetDailyPrices(symbol, start, end)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to read daily prices")
		h.writeError(w, http.StatusInternalServerError, "failed to read daily prices")
		return
	}
	if bars == nil {
		bars = []domain.PriceBar{}
	}

	h.writeJSON(w, http.StatusOK, DailyPricesResponse{Symbol: symbol, Bars: bars, Count: len(bars)})
}

// HandleGetCoverage handles GET /api/prices/{symbol}/coverage.
func (h *Handlers) HandleGetCoverage(w http.ResponseWriter, r *http.Request, symbol string) {
	symbol = universe.NormalizeSymbol(symbol)

	first, last, ok, err := h.store.CoverageBounds(symbol)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to read coverage")
		h.writeError(w, http.StatusInternalServerError, "failed to read coverage")
		return
	}
	if !ok {
		h.writeError(w, http.StatusNotFound, "no stored prices for symbol")
		return
	}

	h.writeJSON(w, http.StatusOK, CoverageResponse{
		Symbol: symbol,
		First:  first.Format("2006-01-02"),
		Last:   last.Format("2006-01-02"),
	})
}

// HandleWarm handles POST /api/prices/warm: it prefetches daily bars for the
// requested symbols so later trials run entirely off the local store.
func (h *Handlers) HandleWarm(w http.ResponseWriter, r *http.Request) {
	var req WarmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid warm request: %v", err))
		return
	}

	start, end, err := parseWarmWindow(req)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	symbols, err := h.resolveSymbols(r, req)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to resolve warm symbols")
		h.writeError(w, http.StatusInternalServerError, "failed to resolve symbols")
		return
	}
	if len(symbols) == 0 {
		h.writeError(w, http.StatusBadRequest, "no symbols to warm")
		return
	}

	fetched, failed, err := h.provider.Warm(r.Context(), symbols, start, end)
	if err != nil {
		h.log.Error().Err(err).Msg("Warm sweep failed")
		h.writeError(w, http.StatusInternalServerError, "warm sweep failed: "+err.Error())
		return
	}

	h.log.Info().
		Int("requested", len(symbols)).
		Int("fetched", fetched).
		Int("failed", failed).
		Msg("Price cache warmed")
	if h.events != nil {
		h.events.EmitTyped(events.PricesWarmed, "historical", &events.PricesWarmedData{
			Requested: len(symbols),
			Fetched:   fetched,
			Failed:    failed,
		})
	}

	h.writeJSON(w, http.StatusOK, WarmResponse{Requested: len(symbols), Fetched: fetched, Failed: failed})
}

// resolveSymbols combines explicit symbols with sector lookups; with neither
// given, it falls back to the whole catalog.
func (h *Handlers) resolveSymbols(r *http.Request, req WarmRequest) ([]string, error) {
	seen := map[string]bool{}
	var symbols []string
	add := func(symbol string) {
		symbol = universe.NormalizeSymbol(symbol)
		if symbol == "" || seen[symbol] {
			return
		}
		seen[symbol] = true
		symbols = append(symbols, symbol)
	}

	for _, symbol := range req.Symbols {
		add(symbol)
	}

	if h.catalog != nil {
		sectors := req.Sectors
		if len(req.Symbols) == 0 && len(sectors) == 0 {
			all, err := h.catalog.ListSectors(r.Context())
			if err != nil {
				return nil, err
			}
			sectors = all
		}
		for _, sector := range sectors {
			sectorSymbols, err := h.catalog.ListSymbols(r.Context(), sector)
			if err != nil {
				return nil, err
			}
			for _, symbol := range sectorSymbols {
				add(symbol)
			}
		}
	}

	return symbols, nil
}

func parseWarmWindow(req WarmRequest) (time.Time, time.Time, error) {
	end := time.Now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(-3, 0, 0)

	var err error
	if req.Start != "" {
		if start, err = time.Parse("2006-01-02", req.Start); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start date, want YYYY-MM-DD")
		}
	}
	if req.End != "" {
		if end, err = time.Parse("2006-01-02", req.End); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date, want YYYY-MM-DD")
		}
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start must precede end")
	}
	return start, end, nil
}

// writeJSON writes a JSON response
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes a JSON error response
func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
