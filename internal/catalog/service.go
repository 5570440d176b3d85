package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/tierquote/internal/identity"
	"github.com/odyssey-erp/tierquote/internal/platform/cache"
	"github.com/odyssey-erp/tierquote/internal/shared"
)

// Service owns catalog reads and writes.
type Service struct {
	repo     Repository
	cache    *cache.Versioned
	audit    shared.AuditRecorder
	validate *validator.Validate
	logger   *slog.Logger
}

// NewService constructs the catalog service. cache and audit may be nil.
func NewService(repo Repository, c *cache.Versioned, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if audit == nil {
		audit = shared.NopAudit{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: c, audit: audit, validate: shared.NewValidator(), logger: logger}
}

func (s *Service) Create(ctx context.Context, actor identity.Actor, req CreateProductRequest) (*Product, error) {
	if !actor.Can().ManageCatalog {
		return nil, shared.Forbidden("role %s cannot manage the catalog", actor.Role)
	}
	if err := shared.ValidateStruct(s.validate, req); err != nil {
		return nil, err
	}
	prices, err := parseTierPrices(req.TierPrices)
	if err != nil {
		return nil, err
	}
	product := Product{
		SKU:           strings.TrimSpace(req.SKU),
		Name:          strings.TrimSpace(req.Name),
		Description:   req.Description,
		Category:      req.Category,
		Unit:          req.Unit,
		MinOrderQty:   req.MinOrderQty,
		PackageLength: req.PackageLength,
		PackageWidth:  req.PackageWidth,
		PackageHeight: req.PackageHeight,
		PackageWeight: req.PackageWeight,
		IsActive:      true,
		TierPrices:    prices,
	}
	if product.Unit == "" {
		product.Unit = DefaultUnit
	}
	if product.MinOrderQty == 0 {
		product.MinOrderQty = DefaultMinOrderQty
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	if existing, err := s.repo.GetBySKU(ctx, product.SKU); err == nil && existing != nil {
		return nil, shared.Conflict("sku", "sku %s already in use", product.SKU)
	} else if err != nil && shared.KindOf(err) != shared.KindNotFound {
		return nil, fmt.Errorf("check sku: %w", err)
	}

	var productID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		components, err := s.resolveComponents(ctx, repo, 0, req.Components)
		if err != nil {
			return err
		}
		product.Components = components
		id, err := repo.Create(ctx, product)
		if err != nil {
			return err
		}
		productID = id
		if err := repo.ReplacePrices(ctx, id, product.TierPrices); err != nil {
			return fmt.Errorf("store tier prices: %w", err)
		}
		if err := repo.ReplaceComponents(ctx, id, components); err != nil {
			return fmt.Errorf("store components: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	s.record(ctx, actor, "product.create", productID, map[string]any{"sku": product.SKU})
	return s.repo.Get(ctx, productID)
}

func (s *Service) Update(ctx context.Context, actor identity.Actor, id int64, req UpdateProductRequest) (*Product, error) {
	if !actor.Can().ManageCatalog {
		return nil, shared.Forbidden("role %s cannot manage the catalog", actor.Role)
	}
	if err := shared.ValidateStruct(s.validate, req); err != nil {
		return nil, err
	}
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.SKU != nil && strings.TrimSpace(*req.SKU) != existing.SKU {
		return nil, shared.Validation("sku", "sku cannot be changed after creation")
	}

	updated := *existing
	if req.Name != nil {
		updated.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		updated.Description = req.Description
	}
	if req.Category != nil {
		updated.Category = req.Category
	}
	if req.Unit != nil {
		updated.Unit = strings.TrimSpace(*req.Unit)
		if updated.Unit == "" {
			updated.Unit = DefaultUnit
		}
	}
	if req.MinOrderQty != nil {
		updated.MinOrderQty = *req.MinOrderQty
	}
	if req.PackageLength != nil {
		updated.PackageLength = req.PackageLength
	}
	if req.PackageWidth != nil {
		updated.PackageWidth = req.PackageWidth
	}
	if req.PackageHeight != nil {
		updated.PackageHeight = req.PackageHeight
	}
	if req.PackageWeight != nil {
		updated.PackageWeight = req.PackageWeight
	}
	if req.IsActive != nil {
		updated.IsActive = *req.IsActive
	}
	if req.TierPrices != nil {
		prices, err := parseTierPrices(*req.TierPrices)
		if err != nil {
			return nil, err
		}
		updated.TierPrices = prices
	}
	if err := validateProduct(updated); err != nil {
		return nil, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if req.Components != nil {
			components, err := s.resolveComponents(ctx, repo, id, *req.Components)
			if err != nil {
				return err
			}
			updated.Components = components
			if err := repo.ReplaceComponents(ctx, id, components); err != nil {
				return fmt.Errorf("store components: %w", err)
			}
		}
		if err := repo.Update(ctx, updated); err != nil {
			return err
		}
		if req.TierPrices != nil {
			if err := repo.ReplacePrices(ctx, id, updated.TierPrices); err != nil {
				return fmt.Errorf("store tier prices: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	s.record(ctx, actor, "product.update", id, map[string]any{"sku": existing.SKU})
	return s.repo.Get(ctx, id)
}

// Get returns a product through the read cache.
func (s *Service) Get(ctx context.Context, id int64) (*Product, error) {
	if id <= 0 {
		return nil, shared.Validation("id", "invalid product id")
	}
	key, err := s.cache.BuildKey(ctx, "product", strconv.FormatInt(id, 10))
	if err != nil {
		s.logger.Warn("catalog cache key", slog.Any("error", err))
		return s.repo.Get(ctx, id)
	}
	var product Product
	err = s.cache.FetchJSON(ctx, key, &product, func(ctx context.Context) (any, error) {
		return s.repo.Get(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetBySKU bypasses the cache.
func (s *Service) GetBySKU(ctx context.Context, sku string) (*Product, error) {
	return s.repo.GetBySKU(ctx, strings.TrimSpace(sku))
}

// GetMany loads fresh copies of the given products keyed by id; missing ids
// are absent from the map.
func (s *Service) GetMany(ctx context.Context, ids []int64) (map[int64]*Product, error) {
	return s.repo.GetMany(ctx, ids)
}

type listPage struct {
	Items []Product `json:"items"`
	Total int       `json:"total"`
}

// List returns a page of products through the read cache.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	key, err := s.cache.BuildKey(ctx, "list",
		strings.ToLower(strings.TrimSpace(filter.Search)),
		strings.ToLower(strings.TrimSpace(filter.Category)),
		strconv.FormatBool(filter.ActiveOnly),
		strconv.Itoa(filter.Page.Limit()),
		strconv.Itoa(filter.Page.Offset()),
	)
	if err != nil {
		s.logger.Warn("catalog cache key", slog.Any("error", err))
		return s.repo.List(ctx, filter)
	}
	var page listPage
	err = s.cache.FetchJSON(ctx, key, &page, func(ctx context.Context) (any, error) {
		items, total, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		return listPage{Items: items, Total: total}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return page.Items, page.Total, nil
}

// Warm preloads the first pages of the active catalog into the cache.
func (s *Service) Warm(ctx context.Context, pages int) (int, error) {
	loaded := 0
	for page := 1; page <= pages; page++ {
		items, total, err := s.List(ctx, ListFilter{ActiveOnly: true, Page: shared.PageRequest{Page: page, PerPage: 100}})
		if err != nil {
			return loaded, err
		}
		for _, p := range items {
			if _, err := s.Get(ctx, p.ID); err != nil {
				return loaded, err
			}
			loaded++
		}
		if page*100 >= total {
			break
		}
	}
	return loaded, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("catalog cache bump", slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, actor identity.Actor, action string, id int64, meta map[string]any) {
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "product",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("catalog audit", slog.String("action", action), slog.Any("error", err))
	}
}
