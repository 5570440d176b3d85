package quotations

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

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, _ := identity.ActorFromContext(r.Context())
	q := r.URL.Query()
	filter := ListFilter{Page: shared.PageFromRequest(r)}
	if raw := q.Get("status"); raw != "" {
		status := Status(raw)
		if !status.Valid() {
			httpx.RespondError(w, shared.Validation("status", "unknown status %q", raw))
			return
		}
		filter.Status = &status
	}
	if raw := q.Get("client_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			httpx.RespondError(w, shared.Validation("client_id", "invalid client id"))
			return
		}
		filter.ClientID = &id
	}
	items, total, err := h.service.List(r.Context(), actor, filter)
	if err != nil {
		h.fail(w, "list quotations", err)
		return
	}
	out := make([]QuotationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewQuotationResponse(item))
	}
	httpx.JSON(w, http.StatusOK, ListResponse{
		Items:      out,
		Pagination: shared.NewPagination(filter.Page.Page, filter.Page.PerPage, total),
	})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	actor, _ := identity.ActorFromContext(r.Context())
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	q, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		h.fail(w, "get quotation", err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewQuotationResponse(*q))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, _ := identity.ActorFromContext(r.Context())
	var req CreateQuotationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.Create(r.Context(), actor, req, r.Header.Get("Idempotency-Key"))
	if err != nil {
		h.fail(w, "create quotation", err)
		return
	}
	w.Header().Set("Location", "/quotes/"+strconv.FormatInt(q.ID, 10))
	httpx.JSON(w, http.StatusCreated, NewQuotationResponse(*q))
}

func (h *Handler) transition(action Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := identity.ActorFromContext(r.Context())
		id, ok := parseID(w, r)
		if !ok {
			return
		}
		q, err := h.service.Transition(r.Context(), actor, id, action)
		if err != nil {
			h.fail(w, string(action)+" quotation", err)
			return
		}
		httpx.JSON(w, http.StatusOK, NewQuotationResponse(*q))
	}
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if shared.KindOf(err) == shared.KindInternal {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, shared.Validation("id", "invalid quotation id"))
		return 0, false
	}
	return id, true
}
