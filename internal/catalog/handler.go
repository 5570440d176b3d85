package catalog

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/tierquote/internal/identity"
	"github.com/odyssey-erp/tierquote/internal/platform/httpx"
	"github.com/odyssey-erp/tierquote/internal/shared"
)

// Pricer attaches viewer specific pricing to products.
type Pricer interface {
	Stamps(ctx context.Context, actor identity.Actor, products []Product) ([]PriceStamp, error)
}

// Handler exposes catalog endpoints as JSON.
type Handler struct {
	logger  *slog.Logger
	service *Service
	pricer  Pricer
	guard   identity.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, pricer Pricer, guard identity.Middleware) *Handler {
	return &Handler{logger: logger, service: service, pricer: pricer, guard: guard}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, _ := identity.ActorFromContext(r.Context())
	q := r.URL.Query()
	filter := ListFilter{
		Search:     q.Get("search"),
		Category:   q.Get("category"),
		ActiveOnly: q.Get("active") == "true",
		Page:       shared.PageFromRequest(r),
	}
	if !actor.Privileged() {
		filter.ActiveOnly = true
	}
	products, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list products", err)
		return
	}
	items, err := h.render(r.Context(), actor, products)
	if err != nil {
		h.fail(w, "stamp products", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ListResponse{
		Items:      items,
		Pagination: shared.NewPagination(filter.Page.Page, filter.Page.PerPage, total),
	})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	actor, _ := identity.ActorFromContext(r.Context())
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get product", err)
		return
	}
	if !product.IsActive && !actor.Privileged() {
		httpx.RespondError(w, shared.NotFound("product", id))
		return
	}
	h.respondOne(w, r, actor, http.StatusOK, product)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, _ := identity.ActorFromContext(r.Context())
	var req CreateProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	product, err := h.service.Create(r.Context(), actor, req)
	if err != nil {
		h.fail(w, "create product", err)
		return
	}
	h.respondOne(w, r, actor, http.StatusCreated, product)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	actor, _ := identity.ActorFromContext(r.Context())
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req UpdateProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	product, err := h.service.Update(r.Context(), actor, id, req)
	if err != nil {
		h.fail(w, "update product", err)
		return
	}
	h.respondOne(w, r, actor, http.StatusOK, product)
}

func (h *Handler) respondOne(w http.ResponseWriter, r *http.Request, actor identity.Actor, status int, product *Product) {
	items, err := h.render(r.Context(), actor, []Product{*product})
	if err != nil {
		h.fail(w, "stamp product", err)
		return
	}
	httpx.JSON(w, status, items[0])
}

func (h *Handler) render(ctx context.Context, actor identity.Actor, products []Product) ([]ProductResponse, error) {
	stamps, err := h.pricer.Stamps(ctx, actor, products)
	if err != nil {
		return nil, err
	}
	out := make([]ProductResponse, 0, len(products))
	for i, p := range products {
		out = append(out, NewProductResponse(p, stamps[i]))
	}
	return out, nil
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if shared.KindOf(err) == shared.KindInternal {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "id")), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, shared.Validation("id", "invalid product id"))
		return 0, false
	}
	return id, true
}
