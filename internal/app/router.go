package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/tierquote/internal/catalog"
	"github.com/odyssey-erp/tierquote/internal/catalog/importer"
	"github.com/odyssey-erp/tierquote/internal/clients"
	"github.com/odyssey-erp/tierquote/internal/identity"
	"github.com/odyssey-erp/tierquote/internal/observability"
	"github.com/odyssey-erp/tierquote/internal/platform/httpx"
	"github.com/odyssey-erp/tierquote/internal/pricing"
	"github.com/odyssey-erp/tierquote/internal/quotations"
	"github.com/odyssey-erp/tierquote/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger   *slog.Logger
	Config   *Config
	Identity identity.Middleware

	CatalogHandler    *catalog.Handler
	ImportHandler     *importer.Handler
	ClientsHandler    *clients.Handler
	PricingHandler    *pricing.Handler
	QuotationsHandler *quotations.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", r.Method+" is not supported here")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Group(func(r chi.Router) {
		r.Use(params.Identity.Authenticate)

		r.Get("/me", func(w http.ResponseWriter, r *http.Request) {
			actor, _ := identity.ActorFromContext(r.Context())
			httpx.JSON(w, http.StatusOK, actor)
		})
		r.Route("/products", func(r chi.Router) {
			// Static import routes must be registered alongside /{id}.
			if params.ImportHandler != nil {
				params.ImportHandler.MountRoutes(r)
			}
			if params.CatalogHandler != nil {
				params.CatalogHandler.MountRoutes(r)
			}
		})
		if params.ClientsHandler != nil {
			r.Route("/clients", params.ClientsHandler.MountRoutes)
		}
		if params.QuotationsHandler != nil {
			r.Route("/quotes", params.QuotationsHandler.MountRoutes)
		}
		if params.PricingHandler != nil {
			r.Route("/pricing", params.PricingHandler.MountRoutes)
		}
	})

	return r
}
