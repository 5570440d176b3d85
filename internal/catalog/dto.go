package catalog

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/tierquote/internal/shared"
)

type ComponentRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gte=1"`
}

type CreateProductRequest struct {
	SKU           string                     `json:"sku" validate:"required,max=64"`
	Name          string                     `json:"name" validate:"required,max=200"`
	Description   *string                    `json:"description,omitempty"`
	Category      *string                    `json:"category,omitempty" validate:"omitempty,max=100"`
	Unit          string                     `json:"unit,omitempty" validate:"omitempty,max=20"`
	MinOrderQty   int                        `json:"min_order_qty,omitempty" validate:"gte=0"`
	PackageLength *decimal.Decimal           `json:"package_length,omitempty"`
	PackageWidth  *decimal.Decimal           `json:"package_width,omitempty"`
	PackageHeight *decimal.Decimal           `json:"package_height,omitempty"`
	PackageWeight *decimal.Decimal           `json:"package_weight,omitempty"`
	IsActive      *bool                      `json:"is_active,omitempty"`
	TierPrices    map[string]decimal.Decimal `json:"tier_prices"`
	Components    []ComponentRequest         `json:"components,omitempty" validate:"dive"`
}

// UpdateProductRequest patches a product. SKU is accepted only to detect
// attempts to change it.
type UpdateProductRequest struct {
	SKU           *string                     `json:"sku,omitempty"`
	Name          *string                     `json:"name,omitempty" validate:"omitempty,max=200"`
	Description   *string                     `json:"description,omitempty"`
	Category      *string                     `json:"category,omitempty" validate:"omitempty,max=100"`
	Unit          *string                     `json:"unit,omitempty" validate:"omitempty,max=20"`
	MinOrderQty   *int                        `json:"min_order_qty,omitempty" validate:"omitempty,gte=1"`
	PackageLength *decimal.Decimal            `json:"package_length,omitempty"`
	PackageWidth  *decimal.Decimal            `json:"package_width,omitempty"`
	PackageHeight *decimal.Decimal            `json:"package_height,omitempty"`
	PackageWeight *decimal.Decimal            `json:"package_weight,omitempty"`
	IsActive      *bool                       `json:"is_active,omitempty"`
	TierPrices    *map[string]decimal.Decimal `json:"tier_prices,omitempty"`
	Components    *[]ComponentRequest         `json:"components,omitempty"`
}

type ListFilter struct {
	Search     string
	Category   string
	ActiveOnly bool
	Page       shared.PageRequest
}

// ProductResponse is what a viewer receives. Client-role viewers never get
// the tier map, only their stamped price.
type ProductResponse struct {
	ID            int64            `json:"id"`
	SKU           string           `json:"sku"`
	Name          string           `json:"name"`
	Description   *string          `json:"description,omitempty"`
	Category      *string          `json:"category,omitempty"`
	Unit          string           `json:"unit"`
	MinOrderQty   int              `json:"min_order_qty"`
	PackageLength *decimal.Decimal `json:"package_length,omitempty"`
	PackageWidth  *decimal.Decimal `json:"package_width,omitempty"`
	PackageHeight *decimal.Decimal `json:"package_height,omitempty"`
	PackageWeight *decimal.Decimal `json:"package_weight,omitempty"`
	IsActive      bool             `json:"is_active"`
	IsBundle      bool             `json:"is_bundle"`
	Components    []Component      `json:"components,omitempty"`
	PriceStamp
}

type ListResponse struct {
	Items      []ProductResponse `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

// NewProductResponse renders p with the viewer's stamp.
func NewProductResponse(p Product, stamp PriceStamp) ProductResponse {
	return ProductResponse{
		ID:            p.ID,
		SKU:           p.SKU,
		Name:          p.Name,
		Description:   p.Description,
		Category:      p.Category,
		Unit:          p.Unit,
		MinOrderQty:   p.MinOrderQty,
		PackageLength: p.PackageLength,
		PackageWidth:  p.PackageWidth,
		PackageHeight: p.PackageHeight,
		PackageWeight: p.PackageWeight,
		IsActive:      p.IsActive,
		IsBundle:      p.IsBundle(),
		Components:    p.Components,
		PriceStamp:    stamp,
	}
}
