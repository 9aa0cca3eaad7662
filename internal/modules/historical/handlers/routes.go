package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the price history routes under /prices.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Route("/prices", func(r chi.Router) {
		r.Get("/{symbol}/daily", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetDailyPrices(w, r, chi.URLParam(r, "symbol"))
		})
		r.Get("/{symbol}/coverage", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetCoverage(w, r, chi.URLParam(r, "symbol"))
		})
		r.Post("/warm", h.HandleWarm)
	})
}
