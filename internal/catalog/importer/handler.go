package importer

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/tierquote/internal/identity"
	"github.com/odyssey-erp/tierquote/internal/platform/httpx"
	"github.com/odyssey-erp/tierquote/internal/shared"
)

const maxUploadBytes = 10 << 20

type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   identity.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, guard identity.Middleware) *Handler {
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers spreadsheet routes on the /products router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/export.xlsx", h.export(FormatXLSX))
	r.Get("/export.csv", h.export(FormatCSV))
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireCatalogManager())
		r.Get("/template.xlsx", h.Template)
		r.Post("/import", h.Import)
	})
}

func (h *Handler) Template(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := WriteTemplate(&buf); err != nil {
		h.fail(w, "render import template", err)
		return
	}
	attach(w, FormatXLSX, "product_template.xlsx", buf.Bytes())
}

func (h *Handler) export(format Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := identity.ActorFromContext(r.Context())
		records, err := h.service.Export(r.Context(), actor)
		if err != nil {
			h.fail(w, "export products", err)
			return
		}
		var buf bytes.Buffer
		if err := WriteExport(&buf, format, records, !actor.Privileged()); err != nil {
			h.fail(w, "encode export", err)
			return
		}
		attach(w, format, "products_export."+string(format), buf.Bytes())
	}
}

func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	actor, _ := identity.ActorFromContext(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httpx.RespondError(w, shared.Validation("file", "invalid upload: %v", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.RespondError(w, shared.Validation("file", "file is required"))
		return
	}
	defer file.Close()

	format, err := FormatFromFilename(header.Filename)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := ReadRows(format, file)
	if err != nil {
		h.fail(w, "read import file", err)
		return
	}
	report, err := h.service.Import(r.Context(), actor, rows)
	if err != nil {
		h.fail(w, "import products", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if shared.KindOf(err) == shared.KindInternal {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func attach(w http.ResponseWriter, format Format, filename string, body []byte) {
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
