package e2e

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/odyssey-erp/tierquote/internal/catalog"
	"github.com/odyssey-erp/tierquote/internal/clients"
	"github.com/odyssey-erp/tierquote/internal/quotations"
	"github.com/odyssey-erp/tierquote/internal/shared"
	"github.com/odyssey-erp/tierquote/internal/users"
)

// The stores below stand in for Postgres so the full HTTP stack can run
// without a database. They keep only the behaviour the services depend on.

type productStore struct {
	mu       sync.Mutex
	nextID   int64
	products map[int64]*catalog.Product
}

func newProductStore() *productStore {
	return &productStore{products: map[int64]*catalog.Product{}}
}

func (s *productStore) clone(p *catalog.Product) *catalog.Product {
	cp := *p
	cp.TierPrices = p.TierPrices.Clone()
	cp.Components = append([]catalog.Component(nil), p.Components...)
	return &cp
}

func (s *productStore) WithTx(ctx context.Context, fn func(context.Context, catalog.Repository) error) error {
	return fn(ctx, s)
}

func (s *productStore) Get(ctx context.Context, id int64) (*catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, shared.NotFound("product", id)
	}
	return s.clone(p), nil
}

func (s *productStore) GetBySKU(ctx context.Context, sku string) (*catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if p.SKU == sku {
			return s.clone(p), nil
		}
	}
	return nil, shared.NotFound("product", sku)
}

func (s *productStore) GetMany(ctx context.Context, ids []int64) (map[int64]*catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]*catalog.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out[id] = s.clone(p)
		}
	}
	return out, nil
}

func (s *productStore) List(ctx context.Context, filter catalog.ListFilter) ([]catalog.Product, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []catalog.Product
	for _, p := range s.products {
		if filter.ActiveOnly && !p.IsActive {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(p.SKU+" "+p.Name), strings.ToLower(filter.Search)) {
			continue
		}
		all = append(all, *s.clone(p))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].SKU < all[j].SKU })
	total := len(all)
	start := min(filter.Page.Offset(), total)
	end := min(start+filter.Page.Limit(), total)
	return all[start:end], total, nil
}

func (s *productStore) Create(ctx context.Context, p catalog.Product) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.products {
		if existing.SKU == p.SKU {
			return 0, shared.Conflict("sku", "sku %s already in use", p.SKU)
		}
	}
	s.nextID++
	p.ID = s.nextID
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	p.TierPrices = catalog.TierPrices{}
	p.Components = nil
	s.products[p.ID] = &p
	return p.ID, nil
}

func (s *productStore) Update(ctx context.Context, p catalog.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.products[p.ID]
	if !ok {
		return shared.NotFound("product", p.ID)
	}
	p.TierPrices = existing.TierPrices
	p.Components = existing.Components
	s.products[p.ID] = &p
	return nil
}

func (s *productStore) ReplacePrices(ctx context.Context, productID int64, prices catalog.TierPrices) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[productID].TierPrices = prices.Clone()
	return nil
}

func (s *productStore) ReplaceComponents(ctx context.Context, parentID int64, components []catalog.Component) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[parentID].Components = append([]catalog.Component(nil), components...)
	return nil
}

func (s *productStore) IsComponent(ctx context.Context, productID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		for _, c := range p.Components {
			if c.ProductID == productID {
				return true, nil
			}
		}
	}
	return false, nil
}

type clientStore struct {
	mu      sync.Mutex
	nextID  int64
	clients map[int64]clients.Client
}

func newClientStore() *clientStore {
	return &clientStore{clients: map[int64]clients.Client{}}
}

func (s *clientStore) Get(ctx context.Context, id int64) (*clients.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return nil, shared.NotFound("client", id)
	}
	return &c, nil
}

func (s *clientStore) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.clients {
		if id != excludeID && strings.EqualFold(c.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (s *clientStore) List(ctx context.Context, filter clients.ListFilter) ([]clients.Client, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []clients.Client
	for _, c := range s.clients {
		if filter.SalesRepID != nil && !c.OwnedBy(*filter.SalesRepID) {
			continue
		}
		if filter.ClientID != nil && c.ID != *filter.ClientID {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (s *clientStore) Create(ctx context.Context, c clients.Client) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	c.ID = s.nextID
	s.clients[c.ID] = c
	return c.ID, nil
}

func (s *clientStore) Update(ctx context.Context, c clients.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c.ID]; !ok {
		return shared.NotFound("client", c.ID)
	}
	s.clients[c.ID] = c
	return nil
}

type quoteStore struct {
	mu     sync.Mutex
	nextID int64
	seq    map[int]int
	quotes  map[int64]*quotations.Quotation
	clients *clientStore
}

func newQuoteStore(cs *clientStore) *quoteStore {
	return &quoteStore{seq: map[int]int{}, quotes: map[int64]*quotations.Quotation{}, clients: cs}
}

func (s *quoteStore) ownedBy(clientID, repID int64) bool {
	c, err := s.clients.Get(context.Background(), clientID)
	return err == nil && c.OwnedBy(repID)
}

func (s *quoteStore) WithTx(ctx context.Context, fn func(context.Context, quotations.Repository) error) error {
	return fn(ctx, s)
}

func (s *quoteStore) Get(ctx context.Context, id int64) (*quotations.Quotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotes[id]
	if !ok {
		return nil, shared.NotFound("quotation", id)
	}
	cp := *q
	cp.Items = append([]quotations.Item(nil), q.Items...)
	return &cp, nil
}

func (s *quoteStore) List(ctx context.Context, filter quotations.ListFilter) ([]quotations.Quotation, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []quotations.Quotation
	for _, q := range s.quotes {
		if filter.ScopeClientID != nil && q.ClientID != *filter.ScopeClientID {
			continue
		}
		if filter.ClientID != nil && q.ClientID != *filter.ClientID {
			continue
		}
		if filter.ScopeSalesRepID != nil && !s.ownedBy(q.ClientID, *filter.ScopeSalesRepID) {
			continue
		}
		if filter.Status != nil && q.EffectiveStatus(filter.AsOf) != *filter.Status {
			continue
		}
		out = append(out, *q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, len(out), nil
}

func (s *quoteStore) NextNumber(ctx context.Context, year int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq[year]++
	return fmt.Sprintf("QT-%04d-%04d", year, s.seq[year]), nil
}

func (s *quoteStore) Create(ctx context.Context, q quotations.Quotation) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	q.ID = s.nextID
	q.CreatedAt = time.Now()
	s.quotes[q.ID] = &q
	return q.ID, nil
}

func (s *quoteStore) Transition(ctx context.Context, id int64, from, to quotations.Status, notExpiredAsOf *time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotes[id]
	if !ok || q.Status != from {
		return false, nil
	}
	if notExpiredAsOf != nil && q.ValidUntil.Before(*notExpiredAsOf) {
		return false, nil
	}
	q.Status = to
	return true, nil
}

func (s *quoteStore) ExpireOverdue(ctx context.Context, asOf time.Time) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for id, q := range s.quotes {
		if (q.Status == quotations.StatusDraft || q.Status == quotations.StatusSent) && q.ValidUntil.Before(asOf) {
			q.Status = quotations.StatusExpired
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type userStore map[int64]users.User

func (s userStore) Get(ctx context.Context, id int64) (*users.User, error) {
	u, ok := s[id]
	if !ok {
		return nil, shared.NotFound("user", id)
	}
	return &u, nil
}
