package importer

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/tierquote/internal/catalog"
	"github.com/odyssey-erp/tierquote/internal/identity"
	"github.com/odyssey-erp/tierquote/internal/shared"
)

// fakeCatalog keeps just enough catalog rules to observe the importer:
// tier A is mandatory on create and components must exist.
type fakeCatalog struct {
	mu       sync.Mutex
	nextID   int64
	products map[int64]*catalog.Product
	updates  int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{products: map[int64]*catalog.Product{}}
}

func (f *fakeCatalog) GetBySKU(ctx context.Context, sku string) (*catalog.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.products {
		if p.SKU == sku {
			cp := *p
			return &cp, nil
		}
	}
	return nil, shared.NotFound("product", sku)
}

func (f *fakeCatalog) Create(ctx context.Context, actor identity.Actor, req catalog.CreateProductRequest) (*catalog.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := req.TierPrices["A"]; !ok {
		return nil, shared.Validation("tier_prices.A", "tier A price is required")
	}
	f.nextID++
	p := &catalog.Product{
		ID:          f.nextID,
		SKU:         req.SKU,
		Name:        req.Name,
		Unit:        req.Unit,
		MinOrderQty: req.MinOrderQty,
		IsActive:    req.IsActive == nil || *req.IsActive,
		TierPrices:  catalog.TierPrices{},
	}
	for k, v := range req.TierPrices {
		p.TierPrices[catalog.Tier(k)] = v
	}
	f.products[p.ID] = p
	cp := *p
	return &cp, nil
}

func (f *fakeCatalog) Update(ctx context.Context, actor identity.Actor, id int64, req catalog.UpdateProductRequest) (*catalog.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, shared.NotFound("product", id)
	}
	f.updates++
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.TierPrices != nil {
		p.TierPrices = catalog.TierPrices{}
		for k, v := range *req.TierPrices {
			p.TierPrices[catalog.Tier(k)] = v
		}
	}
	if req.Components != nil {
		var comps []catalog.Component
		for _, c := range *req.Components {
			child, ok := f.products[c.ProductID]
			if !ok {
				return nil, shared.NotFound("product", c.ProductID)
			}
			comps = append(comps, catalog.Component{ProductID: child.ID, SKU: child.SKU, Quantity: c.Quantity})
		}
		p.Components = comps
	}
	cp := *p
	return &cp, nil
}

func (f *fakeCatalog) List(ctx context.Context, filter catalog.ListFilter) ([]catalog.Product, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []catalog.Product
	for _, p := range f.products {
		if filter.ActiveOnly && !p.IsActive {
			continue
		}
		all = append(all, *p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	start := filter.Page.Offset()
	if start > total {
		start = total
	}
	end := start + filter.Page.Limit()
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (f *fakeCatalog) seed(sku string, active bool, prices map[catalog.Tier]string) *catalog.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	p := &catalog.Product{ID: f.nextID, SKU: sku, Name: strings.ToLower(sku), Unit: "pcs", MinOrderQty: 1, IsActive: active, TierPrices: catalog.TierPrices{}}
	for tier, raw := range prices {
		p.TierPrices[tier] = decimal.RequireFromString(raw)
	}
	f.products[p.ID] = p
	return p
}

type tierPricer struct{}

func (tierPricer) Stamps(ctx context.Context, actor identity.Actor, products []catalog.Product) ([]catalog.PriceStamp, error) {
	out := make([]catalog.PriceStamp, len(products))
	for i, p := range products {
		if actor.Privileged() {
			out[i] = catalog.PriceStamp{TierPrices: p.TierPrices}
			continue
		}
		if price, ok := p.TierPrices[catalog.TierA]; ok {
			tier := catalog.TierA
			out[i] = catalog.PriceStamp{Tier: &tier, CurrentPrice: &price}
		}
	}
	return out, nil
}

type recordingWarmer struct {
	batches []string
}

func (r *recordingWarmer) EnqueueCatalogWarm(ctx context.Context, batchID string) error {
	r.batches = append(r.batches, batchID)
	return nil
}

var (
	admin = identity.Actor{ID: 1, Role: identity.RoleAdmin}
	buyer = identity.Actor{ID: 30, Role: identity.RoleClient, ClientID: func() *int64 { v := int64(100); return &v }()}
)
