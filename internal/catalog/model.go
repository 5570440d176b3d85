package catalog

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/tierquote/internal/shared"
)

// Tier is a client's pricing bracket.
type Tier string

const (
	TierX Tier = "X" // premium, best price for the client
	TierS Tier = "S"
	TierA Tier = "A" // economy, every product prices it
)

// Tiers lists tiers in fallback order X → S → A.
func Tiers() []Tier {
	return []Tier{TierX, TierS, TierA}
}

// ParseTier validates a tier code.
func ParseTier(raw string) (Tier, error) {
	t := Tier(strings.ToUpper(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", shared.Validation("tier", "unknown tier %q, expected X, S or A", raw)
	}
	return t, nil
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierX, TierS, TierA:
		return true
	}
	return false
}

// Fallbacks returns t followed by every cheaper-for-business tier.
func (t Tier) Fallbacks() []Tier {
	all := Tiers()
	for i, candidate := range all {
		if candidate == t {
			return all[i:]
		}
	}
	return nil
}

// TierPrices maps tier codes to unit prices.
type TierPrices map[Tier]decimal.Decimal

// Clone returns an independent copy.
func (tp TierPrices) Clone() TierPrices {
	out := make(TierPrices, len(tp))
	for k, v := range tp {
		out[k] = v
	}
	return out
}

// Component is one line of a bundle's flat composition.
type Component struct {
	ProductID int64  `json:"product_id"`
	SKU       string `json:"sku,omitempty"`
	Quantity  int    `json:"quantity"`
}

// Product is a catalog entry; a product with components is a bundle.
type Product struct {
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
	TierPrices    TierPrices       `json:"tier_prices"`
	Components    []Component      `json:"components,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// IsBundle reports whether the product is composed of other products.
func (p Product) IsBundle() bool {
	return len(p.Components) > 0
}

// TierPrice returns the price set for exactly tier, without fallback.
func (p Product) TierPrice(tier Tier) (decimal.Decimal, bool) {
	price, ok := p.TierPrices[tier]
	return price, ok
}

// PriceStamp is the viewer specific pricing attached to a product listing.
type PriceStamp struct {
	Tier           *Tier            `json:"tier,omitempty"`
	CurrentPrice   *decimal.Decimal `json:"current_price,omitempty"`
	PriceAvailable *bool            `json:"price_available,omitempty"`
	TierPrices     TierPrices       `json:"tier_prices,omitempty"`
}

const (
	DefaultUnit        = "pcs"
	DefaultMinOrderQty = 1
)
