package clients

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Show)
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireClientManager())
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
	})
}
