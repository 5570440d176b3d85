package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/tierquote/internal/catalog"
	"github.com/odyssey-erp/tierquote/internal/catalog/importer"
	"github.com/odyssey-erp/tierquote/internal/clients"
	"github.com/odyssey-erp/tierquote/internal/identity"
	"github.com/odyssey-erp/tierquote/internal/observability"
	"github.com/odyssey-erp/tierquote/internal/platform/cache"
	"github.com/odyssey-erp/tierquote/internal/pricing"
	"github.com/odyssey-erp/tierquote/internal/quotations"
	"github.com/odyssey-erp/tierquote/internal/shared"
	"github.com/odyssey-erp/tierquote/internal/users"
)

// Services holds the domain services shared by the server, the worker and the CLI.
type Services struct {
	Tokens     *identity.TokenStore
	Users      *users.Service
	Catalog    *catalog.Service
	Clients    *clients.Service
	Pricing    *pricing.Service
	Quotations *quotations.Service
	Importer   *importer.Service
}

// ServiceDeps are the infrastructure handles services are built from.
type ServiceDeps struct {
	Config  *Config
	Logger  *slog.Logger
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Metrics *observability.Metrics
	Warmer  importer.Warmer
}

// NewServices wires repositories and services.
func NewServices(deps ServiceDeps) *Services {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	audit := shared.NewAuditLogger(deps.Pool)

	userSvc := users.NewService(users.NewRepository(deps.Pool))
	catalogSvc := catalog.NewService(
		catalog.NewRepository(deps.Pool),
		cache.NewVersioned(deps.Redis, "catalog", deps.Config.CatalogCacheTTL).
			WithLogger(logger.With(slog.String("component", "cache"))),
		audit,
		logger.With(slog.String("component", "catalog")),
	)
	clientSvc := clients.NewService(clients.NewRepository(deps.Pool), userSvc, audit, logger.With(slog.String("component", "clients")))

	var priceObserver pricing.Observer
	var quoteObserver quotations.Observer
	if deps.Metrics != nil {
		priceObserver = deps.Metrics
		quoteObserver = deps.Metrics
	}
	pricingSvc := pricing.NewService(clientSvc, catalogSvc, priceObserver)

	quoteSvc := quotations.NewService(
		quotations.NewRepository(deps.Pool),
		clientSvc,
		catalogSvc,
		pricingSvc,
		deps.Config.Quotations(),
		logger.With(slog.String("component", "quotations")),
	).WithAudit(audit).WithIdempotency(shared.NewIdempotencyStore(deps.Pool))
	if quoteObserver != nil {
		quoteSvc = quoteSvc.WithObserver(quoteObserver)
	}

	importSvc := importer.NewService(catalogSvc, pricingSvc, logger.With(slog.String("component", "importer")))
	if deps.Warmer != nil {
		importSvc = importSvc.WithWarmer(deps.Warmer)
	}

	return &Services{
		Tokens:     identity.NewTokenStore(deps.Redis, deps.Config.TokenPrefix),
		Users:      userSvc,
		Catalog:    catalogSvc,
		Clients:    clientSvc,
		Pricing:    pricingSvc,
		Quotations: quoteSvc,
		Importer:   importSvc,
	}
}
