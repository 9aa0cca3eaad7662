// Package handlers provides HTTP handlers for the security catalog.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aristath/trellis/internal/events"
	"github.com/aristath/trellis/internal/modules/universe"
)

// Handlers serves catalog reads and the reseed operation.
type Handlers struct {
	repo   *universe.CatalogRepository
	events *events.Manager
	log    zerolog.Logger
}

// New creates catalog handlers. The events manager may be nil.
func New(repo *universe.CatalogRepository, em *events.Manager, log zerolog.Logger) *Handlers {
	return &Handlers{
		repo:   repo,
		events: em,
		log:    log.With().Str("handler", "universe").Logger(),
	}
}

// SectorsResponse lists the catalog's sectors.
type SectorsResponse struct {
	Sectors []string `json:"sectors"`
	Count   int      `json:"count"`
}

// SecuritiesResponse lists catalog entries.
type SecuritiesResponse struct {
	Securities []universe.Security `json:"securities"`
	Count      int                 `json:"count"`
}

// ReseedResponse reports the outcome of a catalog rebuild.
type ReseedResponse struct {
	Securities int `json:"securities"`
	Sectors    int `json:"sectors"`
}

// HandleListSectors handles GET /api/universe/sectors.
func (h *Handlers) HandleListSectors(w http.ResponseWriter, r *http.Request) {
	sectors, err := h.repo.ListSectors(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list sectors")
		h.writeError(w, http.StatusInternalServerError, "failed to list sectors")
		return
	}
	if sectors == nil {
		sectors = []string{}
	}

	h.writeJSON(w, http.StatusOK, SectorsResponse{Sectors: sectors, Count: len(sectors)})
}

// HandleListSecurities handles GET /api/universe/securities. ?sector= narrows
// the result to one sector.
func (h *Handlers) HandleListSecurities(w http.ResponseWriter, r *http.Request) {
	securities, err := h.repo.All(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list securities")
		h.writeError(w, http.StatusInternalServerError, "failed to list securities")
		return
	}

	if sector := r.URL.Query().Get("sector"); sector != "" {
		filtered := securities[:0]
		for _, sec := range securities {
			if sec.Sector == sector {
				filtered = append(filtered, sec)
			}
		}
		securities = filtered
	}
	if securities == nil {
		securities = []universe.Security{}
	}

	h.writeJSON(w, http.StatusOK, SecuritiesResponse{Securities: securities, Count: len(securities)})
}

// HandleReseed handles POST /api/universe/reseed: it rebuilds the catalog
// from the embedded constituents file, replacing whatever is stored.
func (h *Handlers) HandleReseed(w http.ResponseWriter, r *http.Request) {
	securities, err := universe.LoadConstituents(universe.DefaultCutoff)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load constituents")
		h.writeError(w, http.StatusInternalServerError, "failed to load constituents")
		return
	}

	if err := h.repo.ReplaceAll(r.Context(), securities); err != nil {
		h.log.Error().Err(err).Msg("Failed to reseed catalog")
		h.writeError(w, http.StatusInternalServerError, "failed to reseed catalog")
		return
	}

	sectors := map[string]bool{}
	for _, sec := range securities {
		sectors[sec.Sector] = true
	}

	h.log.Info().
		Int("securities", len(securities)).
		Int("sectors", len(sectors)).
		Msg("Catalog reseeded")
	if h.events != nil {
		h.events.EmitTyped(events.UniverseSynced, "universe", &events.UniverseSyncedData{
			Securities: len(securities),
			Sectors:    len(sectors),
		})
	}

	h.writeJSON(w, http.StatusOK, ReseedResponse{Securities: len(securities), Sectors: len(sectors)})
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
