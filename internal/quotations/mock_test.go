package quotations

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/tierquote/internal/catalog"
	"github.com/odyssey-erp/tierquote/internal/clients"
	"github.com/odyssey-erp/tierquote/internal/identity"
	"github.com/odyssey-erp/tierquote/internal/pricing"
	"github.com/odyssey-erp/tierquote/internal/shared"
)

type mockRepo struct {
	mu     sync.Mutex
	nextID int64
	seq    map[int]int
	quotes map[int64]*Quotation
}

func newMockRepo() *mockRepo {
	return &mockRepo{seq: map[int]int{}, quotes: map[int64]*Quotation{}}
}

func (m *mockRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *mockRepo) Get(ctx context.Context, id int64) (*Quotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotes[id]
	if !ok {
		return nil, shared.NotFound("quotation", id)
	}
	cp := *q
	cp.Items = append([]Item(nil), q.Items...)
	return &cp, nil
}

func (m *mockRepo) List(ctx context.Context, filter ListFilter) ([]Quotation, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Quotation
	for _, q := range m.quotes {
		if filter.ScopeClientID != nil && q.ClientID != *filter.ScopeClientID {
			continue
		}
		if filter.ScopeSalesRepID != nil && q.CreatedBy != *filter.ScopeSalesRepID {
			continue
		}
		if filter.Status != nil && q.EffectiveStatus(filter.AsOf) != *filter.Status {
			continue
		}
		out = append(out, *q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *mockRepo) NextNumber(ctx context.Context, year int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq[year]++
	return fmt.Sprintf("QT-%04d-%04d", year, m.seq[year]), nil
}

func (m *mockRepo) Create(ctx context.Context, q Quotation) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	q.ID = m.nextID
	q.CreatedAt = time.Now()
	m.quotes[q.ID] = &q
	return q.ID, nil
}

func (m *mockRepo) Transition(ctx context.Context, id int64, from, to Status, notExpiredAsOf *time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotes[id]
	if !ok || q.Status != from {
		return false, nil
	}
	if notExpiredAsOf != nil && q.ValidUntil.Before(*notExpiredAsOf) {
		return false, nil
	}
	q.Status = to
	return true, nil
}

func (m *mockRepo) ExpireOverdue(ctx context.Context, asOf time.Time) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for id, q := range m.quotes {
		if (q.Status == StatusDraft || q.Status == StatusSent) && q.ValidUntil.Before(asOf) {
			q.Status = StatusExpired
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// setStatus forces a stored status for test setup.
func (m *mockRepo) setStatus(id int64, s Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes[id].Status = s
}

type clientMap map[int64]clients.Client

func (c clientMap) Lookup(ctx context.Context, id int64) (*clients.Client, error) {
	cl, ok := c[id]
	if !ok {
		return nil, shared.NotFound("client", id)
	}
	return &cl, nil
}

type productMap struct {
	mu       sync.Mutex
	products map[int64]catalog.Product
}

func (p *productMap) GetMany(ctx context.Context, ids []int64) (map[int64]*catalog.Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := map[int64]*catalog.Product{}
	for _, id := range ids {
		if prod, ok := p.products[id]; ok {
			cp := prod
			out[id] = &cp
		}
	}
	return out, nil
}

func (p *productMap) remove(id int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.products, id)
}

type memIdempotency struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (m *memIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = true
	return nil
}

func (m *memIdempotency) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

type countingObserver struct {
	mu       sync.Mutex
	created  int
	outcomes map[string]int
}

func (c *countingObserver) QuotationCreated(string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.created++
}

func (c *countingObserver) Transition(action, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outcomes == nil {
		c.outcomes = map[string]int{}
	}
	c.outcomes[action+":"+outcome]++
}

func ptr[T any](v T) *T { return &v }

var (
	today    = time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	admin    = identity.Actor{ID: 1, Role: identity.RoleAdmin}
	salesRep = identity.Actor{ID: 5, Role: identity.RoleSales}
	buyer    = identity.Actor{ID: 30, Role: identity.RoleClient, ClientID: ptr(int64(100))}
)

type fixture struct {
	svc      *Service
	repo     *mockRepo
	products *productMap
	observer *countingObserver
}

func newFixture(policy PricePolicy) *fixture {
	repo := newMockRepo()
	cs := clientMap{
		100: {ID: 100, CompanyName: "Acme", Tier: catalog.TierS, SalesRepID: ptr(int64(5)), IsActive: true},
		101: {ID: 101, CompanyName: "Dormant", Tier: catalog.TierA, IsActive: false},
		102: {ID: 102, CompanyName: "Other", Tier: catalog.TierX, SalesRepID: ptr(int64(6)), IsActive: true},
	}
	products := &productMap{products: map[int64]catalog.Product{
		1: {ID: 1, SKU: "P-1", Name: "Pump", MinOrderQty: 1, IsActive: true, TierPrices: catalog.TierPrices{
			catalog.TierX: decimal.RequireFromString("90"),
			catalog.TierS: decimal.RequireFromString("95"),
			catalog.TierA: decimal.RequireFromString("100"),
		}},
		2: {ID: 2, SKU: "V-2", Name: "Valve", MinOrderQty: 1, IsActive: true, TierPrices: catalog.TierPrices{
			catalog.TierA: decimal.RequireFromString("50"),
		}},
		3: {ID: 3, SKU: "B-3", Name: "Bolt", MinOrderQty: 10, IsActive: true, TierPrices: catalog.TierPrices{
			catalog.TierA: decimal.RequireFromString("0.25"),
		}},
		4: {ID: 4, SKU: "OLD-4", Name: "Retired", MinOrderQty: 1, IsActive: false, TierPrices: catalog.TierPrices{
			catalog.TierA: decimal.RequireFromString("1"),
		}},
		5: {ID: 5, SKU: "NP-5", Name: "Unpriced", MinOrderQty: 1, IsActive: true, TierPrices: catalog.TierPrices{}},
	}}
	observer := &countingObserver{}
	svc := NewService(repo, cs, products, pricing.NewService(nil, nil, nil), Config{PricePolicy: policy}, nil).
		WithIdempotency(&memIdempotency{keys: map[string]bool{}}).
		WithObserver(observer)
	svc.now = func() time.Time { return today }
	return &fixture{svc: svc, repo: repo, products: products, observer: observer}
}

func standardRequest() CreateQuotationRequest {
	return CreateQuotationRequest{
		ClientID:   100,
		ValidUntil: "2025-03-31",
		Items: []ItemRequest{
			{ProductID: 1, Quantity: 2, UnitPrice: ptr(decimal.RequireFromString("100")), DiscountPercent: decimal.RequireFromString("10")},
			{ProductID: 2, Quantity: 1, UnitPrice: ptr(decimal.RequireFromString("50"))},
		},
	}
}
