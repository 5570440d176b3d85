package quotations

import "github.com/go-chi/chi/v5"

// MountRoutes registers quotation routes under /quotes. Role rules live in
// the service since they depend on the quotation's state and creator.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Show)
	r.Post("/{id}/send", h.transition(ActionSend))
	r.Post("/{id}/confirm", h.transition(ActionConfirm))
	r.Post("/{id}/cancel", h.transition(ActionCancel))
}
