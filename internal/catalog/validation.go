package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/tierquote/internal/shared"
)

func parseTierPrices(raw map[string]decimal.Decimal) (TierPrices, error) {
	prices := make(TierPrices, len(raw))
	for code, price := range raw {
		tier, err := ParseTier(code)
		if err != nil {
			return nil, shared.Validation("tier_prices", "unknown tier %q", code)
		}
		if price.IsNegative() {
			return nil, shared.Validation("tier_prices."+string(tier), "price must not be negative")
		}
		prices[tier] = price.Round(2)
	}
	if _, ok := prices[TierA]; !ok {
		return nil, shared.Validation("tier_prices.A", "a tier A price is required")
	}
	return prices, nil
}

func validateProduct(p Product) error {
	if strings.TrimSpace(p.SKU) == "" {
		return shared.Validation("sku", "is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return shared.Validation("name", "is required")
	}
	if p.MinOrderQty < 1 {
		return shared.Validation("min_order_qty", "must be at least 1")
	}
	for name, dim := range map[string]*decimal.Decimal{
		"package_length": p.PackageLength,
		"package_width":  p.PackageWidth,
		"package_height": p.PackageHeight,
		"package_weight": p.PackageWeight,
	} {
		if dim != nil && dim.IsNegative() {
			return shared.Validation(name, "must not be negative")
		}
	}
	return nil
}

// resolveComponents checks a bundle's flat composition: every child exists,
// is not itself a bundle, and appears once.
func (s *Service) resolveComponents(ctx context.Context, repo Repository, parentID int64, reqs []ComponentRequest) ([]Component, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	if parentID != 0 {
		used, err := repo.IsComponent(ctx, parentID)
		if err != nil {
			return nil, err
		}
		if used {
			return nil, shared.Validation("components", "product %d is a component of another bundle and cannot become a bundle", parentID)
		}
	}
	ids := make([]int64, 0, len(reqs))
	seen := make(map[int64]struct{}, len(reqs))
	for i, req := range reqs {
		field := fmt.Sprintf("components[%d]", i)
		if req.Quantity < 1 {
			return nil, shared.Validation(field+".quantity", "must be at least 1")
		}
		if req.ProductID == parentID && parentID != 0 {
			return nil, shared.Validation(field+".product_id", "a bundle cannot contain itself")
		}
		if _, dup := seen[req.ProductID]; dup {
			return nil, shared.Validation(field+".product_id", "product %d listed twice", req.ProductID)
		}
		seen[req.ProductID] = struct{}{}
		ids = append(ids, req.ProductID)
	}
	children, err := repo.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	components := make([]Component, 0, len(reqs))
	for i, req := range reqs {
		field := fmt.Sprintf("components[%d].product_id", i)
		child, ok := children[req.ProductID]
		if !ok {
			return nil, shared.NotFound("component product", req.ProductID)
		}
		if child.IsBundle() {
			return nil, shared.Validation(field, "product %s is a bundle; nested bundles are not supported", child.SKU)
		}
		components = append(components, Component{ProductID: child.ID, SKU: child.SKU, Quantity: req.Quantity})
	}
	return components, nil
}
