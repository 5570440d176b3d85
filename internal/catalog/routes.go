package catalog

import "github.com/go-chi/chi/v5"

// MountRoutes registers product routes; the caller mounts them under /products
// behind authentication.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Show)
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireCatalogManager())
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
	})
}
