package pricing

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/tierquote/internal/identity"
	"github.com/odyssey-erp/tierquote/internal/platform/httpx"
	"github.com/odyssey-erp/tierquote/internal/shared"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers pricing routes under /pricing.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products/{id}", h.ResolveProduct)
}

func (h *Handler) ResolveProduct(w http.ResponseWriter, r *http.Request) {
	actor, _ := identity.ActorFromContext(r.Context())
	productID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || productID <= 0 {
		httpx.RespondError(w, shared.Validation("id", "invalid product id"))
		return
	}
	var clientID *int64
	if raw := r.URL.Query().Get("client_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			httpx.RespondError(w, shared.Validation("client_id", "invalid client id"))
			return
		}
		clientID = &id
	}
	res, err := h.service.ResolveForActor(r.Context(), actor, productID, clientID)
	if err != nil {
		if shared.KindOf(err) == shared.KindInternal {
			h.logger.Error("resolve price", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}
