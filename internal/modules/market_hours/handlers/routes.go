package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the calendar routes under /calendar.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Route("/calendar", func(r chi.Router) {
		r.Get("/status", h.HandleGetStatus)
		r.Get("/trading-days", h.HandleCountTradingDays)
	})
}
