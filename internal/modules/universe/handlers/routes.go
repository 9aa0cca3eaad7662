package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the catalog routes under /universe.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Route("/universe", func(r chi.Router) {
		r.Get("/sectors", h.HandleListSectors)
		r.Get("/securities", h.HandleListSecurities)
		r.Post("/reseed", h.HandleReseed)
	})
}
