package pricing

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/tierquote/internal/catalog"
	"github.com/odyssey-erp/tierquote/internal/clients"
	"github.com/odyssey-erp/tierquote/internal/identity"
	"github.com/odyssey-erp/tierquote/internal/shared"
)

// ClientSource returns clients scoped to the actor.
type ClientSource interface {
	Get(ctx context.Context, actor identity.Actor, id int64) (*clients.Client, error)
}

// ProductSource returns catalog products.
type ProductSource interface {
	Get(ctx context.Context, id int64) (*catalog.Product, error)
}

// Observer is notified when a resolution finds no price.
type Observer interface {
	PriceUnavailable(tier string)
}

type nopObserver struct{}

func (nopObserver) PriceUnavailable(string) {}

// Service binds viewers to tiers and stamps prices.
type Service struct {
	clients  ClientSource
	products ProductSource
	observer Observer
}

func NewService(clients ClientSource, products ProductSource, observer Observer) *Service {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Service{clients: clients, products: products, observer: observer}
}

// ViewerFor determines how actor sees prices, optionally in the context of
// clientID. Client-role actors are always bound to their own client.
func (s *Service) ViewerFor(ctx context.Context, actor identity.Actor, clientID *int64) (Viewer, error) {
	caps := actor.Can()
	if caps.Client {
		if actor.ClientID == nil {
			return Viewer{}, shared.Forbidden("client user is not linked to a client")
		}
		if clientID != nil && *clientID != *actor.ClientID {
			return Viewer{}, shared.NotFound("client", *clientID)
		}
		c, err := s.clients.Get(ctx, actor, *actor.ClientID)
		if err != nil {
			return Viewer{}, err
		}
		tier := c.Tier
		return Viewer{Client: &tier}, nil
	}
	if !caps.SeeAllTierPrices {
		return Viewer{}, shared.Forbidden("role %s cannot view prices", actor.Role)
	}
	v := Viewer{FullMap: true}
	if clientID != nil {
		c, err := s.clients.Get(ctx, actor, *clientID)
		if err != nil {
			return Viewer{}, err
		}
		tier := c.Tier
		v.Client = &tier
	}
	return v, nil
}

// Stamps implements catalog.Pricer.
func (s *Service) Stamps(ctx context.Context, actor identity.Actor, products []catalog.Product) ([]catalog.PriceStamp, error) {
	v, err := s.ViewerFor(ctx, actor, nil)
	if err != nil {
		return nil, err
	}
	out := make([]catalog.PriceStamp, len(products))
	for i, p := range products {
		out[i] = Stamp(p, v)
		if out[i].PriceAvailable != nil && !*out[i].PriceAvailable {
			s.observer.PriceUnavailable(string(*out[i].Tier))
		}
	}
	return out, nil
}

// Resolution is the price of one product as seen by one viewer.
type Resolution struct {
	ProductID    int64         `json:"product_id"`
	SKU          string        `json:"sku"`
	ResolvedFrom *catalog.Tier `json:"resolved_from,omitempty"`
	catalog.PriceStamp
}

// ResolveForActor prices productID for actor, bound to clientID when given.
func (s *Service) ResolveForActor(ctx context.Context, actor identity.Actor, productID int64, clientID *int64) (Resolution, error) {
	v, err := s.ViewerFor(ctx, actor, clientID)
	if err != nil {
		return Resolution{}, err
	}
	p, err := s.products.Get(ctx, productID)
	if err != nil {
		return Resolution{}, err
	}
	if !p.IsActive && !actor.Privileged() {
		return Resolution{}, shared.NotFound("product", productID)
	}
	res := Resolution{ProductID: p.ID, SKU: p.SKU, PriceStamp: Stamp(*p, v)}
	if v.Client != nil {
		if _, from, err := Resolve(*p, *v.Client); err == nil {
			res.ResolvedFrom = &from
		} else {
			s.observer.PriceUnavailable(string(*v.Client))
		}
	}
	return res, nil
}

// UnitPrice resolves the price a quotation line should carry for a client.
func (s *Service) UnitPrice(p catalog.Product, tier catalog.Tier) (decimal.Decimal, error) {
	price, _, err := Resolve(p, tier)
	if err != nil && shared.KindOf(err) == shared.KindPriceUnavailable {
		s.observer.PriceUnavailable(string(tier))
	}
	return price, err
}
