// Package pricing resolves the unit price a viewer sees for a product.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/tierquote/internal/catalog"
	"github.com/odyssey-erp/tierquote/internal/shared"
)

// Resolve returns the price for tier, falling back X → S → A when the exact
// tier is unset. The second result names the tier whose price was used.
// No price at any fallback tier is a PriceUnavailable error, never zero.
func Resolve(p catalog.Product, tier catalog.Tier) (decimal.Decimal, catalog.Tier, error) {
	if !tier.Valid() {
		return decimal.Zero, "", shared.Validation("tier", "unknown tier %q", tier)
	}
	for _, candidate := range tier.Fallbacks() {
		if price, ok := p.TierPrice(candidate); ok {
			return price, candidate, nil
		}
	}
	return decimal.Zero, "", shared.PriceUnavailable(p.ID, string(tier))
}

// Viewer is who a price is shown to. Client is set when prices are bound to
// a client's tier; FullMap is set for roles allowed to see every tier.
type Viewer struct {
	Client  *catalog.Tier
	FullMap bool
}

// Stamp renders the price view of p for v. A client bound view carries only
// that tier's resolved price; the tier map is attached only for FullMap.
func Stamp(p catalog.Product, v Viewer) catalog.PriceStamp {
	var stamp catalog.PriceStamp
	if v.FullMap {
		stamp.TierPrices = p.TierPrices.Clone()
	}
	if v.Client == nil {
		return stamp
	}
	tier := *v.Client
	stamp.Tier = &tier
	available := false
	if price, _, err := Resolve(p, tier); err == nil {
		stamp.CurrentPrice = &price
		available = true
	}
	stamp.PriceAvailable = &available
	return stamp
}
