// Package quotations assembles priced quotations for clients and governs
// their lifecycle.
package quotations

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/odyssey-erp/tierquote/internal/catalog"
	"github.com/odyssey-erp/tierquote/internal/clients"
	"github.com/odyssey-erp/tierquote/internal/identity"
	"github.com/odyssey-erp/tierquote/internal/shared"
)

// PricePolicy decides how a submitted unit_price is checked.
type PricePolicy string

const (
	// PolicyStrict requires client submitted prices to match the resolver.
	PolicyStrict PricePolicy = "strict"
	// PolicyTrust stores submitted prices as given.
	PolicyTrust PricePolicy = "trust"
)

const idempotencyModule = "quotations.create"

type Config struct {
	PricePolicy     PricePolicy
	DefaultCurrency string
	DefaultValidity time.Duration
}

type ClientSource interface {
	Lookup(ctx context.Context, id int64) (*clients.Client, error)
}

type ProductSource interface {
	GetMany(ctx context.Context, ids []int64) (map[int64]*catalog.Product, error)
}

// UnitPricer resolves the catalog price for a client tier.
type UnitPricer interface {
	UnitPrice(p catalog.Product, tier catalog.Tier) (decimal.Decimal, error)
}

// Observer receives quotation events for metrics.
type Observer interface {
	QuotationCreated(currency string)
	Transition(action, outcome string)
}

type nopObserver struct{}

func (nopObserver) QuotationCreated(string)   {}
func (nopObserver) Transition(string, string) {}

type Service struct {
	repo     Repository
	clients  ClientSource
	products ProductSource
	pricer   UnitPricer
	cfg      Config
	idem     shared.IdempotencyGuard
	audit    shared.AuditRecorder
	observer Observer
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(repo Repository, clients ClientSource, products ProductSource, pricer UnitPricer, cfg Config, logger *slog.Logger) *Service {
	if cfg.PricePolicy == "" {
		cfg.PricePolicy = PolicyStrict
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "USD"
	}
	if cfg.DefaultValidity <= 0 {
		cfg.DefaultValidity = 30 * 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		clients:  clients,
		products: products,
		pricer:   pricer,
		cfg:      cfg,
		audit:    shared.NopAudit{},
		observer: nopObserver{},
		validate: shared.NewValidator(),
		logger:   logger,
		now:      time.Now,
	}
}

// WithAudit sets the audit recorder.
func (s *Service) WithAudit(a shared.AuditRecorder) *Service {
	if a != nil {
		s.audit = a
	}
	return s
}

// WithIdempotency enables Idempotency-Key handling on Create.
func (s *Service) WithIdempotency(g shared.IdempotencyGuard) *Service {
	s.idem = g
	return s
}

// WithObserver sets the metrics observer.
func (s *Service) WithObserver(o Observer) *Service {
	if o != nil {
		s.observer = o
	}
	return s
}

// Create validates and persists a draft quotation on behalf of actor.
// A non-empty idempotencyKey rejects replays with a conflict.
func (s *Service) Create(ctx context.Context, actor identity.Actor, req CreateQuotationRequest, idempotencyKey string) (*Quotation, error) {
	if err := shared.ValidateStruct(s.validate, req); err != nil {
		return nil, err
	}
	client, err := s.clients.Lookup(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}
	if !clients.CanAccess(actor, *client) {
		return nil, shared.Forbidden("user %d cannot quote for client %d", actor.ID, client.ID)
	}
	if !client.IsActive {
		return nil, shared.Validation("client_id", "client %d is inactive", client.ID)
	}

	now := s.now()
	code, err := s.currency(req.Currency)
	if err != nil {
		return nil, err
	}
	validUntil, err := s.validUntil(req.ValidUntil, now)
	if err != nil {
		return nil, err
	}
	items, err := s.buildItems(ctx, actor, *client, req.Items)
	if err != nil {
		return nil, err
	}

	q := Quotation{
		ClientID:    client.ID,
		Status:      StatusDraft,
		Currency:    code,
		ValidUntil:  validUntil,
		Notes:       trimNotes(req.Notes),
		Items:       items,
		TotalAmount: Total(items),
		CreatedBy:   actor.ID,
	}

	key := strings.TrimSpace(idempotencyKey)
	if key != "" && s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
			return nil, err
		}
	}

	var id int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		number, err := repo.NextNumber(ctx, now.UTC().Year())
		if err != nil {
			return fmt.Errorf("issue quotation number: %w", err)
		}
		q.Number = number
		id, err = repo.Create(ctx, q)
		if err != nil {
			return fmt.Errorf("create quotation: %w", err)
		}
		return nil
	})
	if err != nil {
		if key != "" && s.idem != nil {
			if delErr := s.idem.Delete(ctx, key); delErr != nil {
				s.logger.Warn("release idempotency key", slog.Any("error", delErr))
			}
		}
		return nil, err
	}

	s.observer.QuotationCreated(code)
	s.record(ctx, actor.ID, "quotation.create", id, map[string]any{
		"number": q.Number,
		"client": q.ClientID,
		"total":  q.TotalAmount.StringFixed(2),
	})
	return s.Get(ctx, actor, id)
}

func (s *Service) buildItems(ctx context.Context, actor identity.Actor, client clients.Client, reqs []ItemRequest) ([]Item, error) {
	ids := make([]int64, 0, len(reqs))
	for _, it := range reqs {
		ids = append(ids, it.ProductID)
	}
	products, err := s.products.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	items := make([]Item, 0, len(reqs))
	for i, req := range reqs {
		field := fmt.Sprintf("items[%d]", i)
		p, ok := products[req.ProductID]
		if !ok {
			return nil, shared.NotFound("product", req.ProductID)
		}
		if !p.IsActive {
			return nil, shared.Validation(field+".product_id", "product %s is inactive", p.SKU)
		}
		if req.Quantity < 1 {
			return nil, shared.Validation(field+".quantity", "must be at least 1")
		}
		if req.Quantity < p.MinOrderQty {
			return nil, shared.Validation(field+".quantity", "minimum order quantity for %s is %d", p.SKU, p.MinOrderQty)
		}
		if req.DiscountPercent.IsNegative() || req.DiscountPercent.GreaterThan(hundred) {
			return nil, shared.Validation(field+".discount_percent", "must be between 0 and 100")
		}
		if !centPrecision(req.DiscountPercent) {
			return nil, shared.Validation(field+".discount_percent", "at most 2 decimal places")
		}
		price, err := s.unitPrice(actor, client, *p, req.UnitPrice, field)
		if err != nil {
			return nil, err
		}
		items = append(items, Item{
			Position:        i + 1,
			ProductID:       p.ID,
			SKU:             p.SKU,
			Name:            p.Name,
			Quantity:        req.Quantity,
			UnitPrice:       price,
			DiscountPercent: req.DiscountPercent,
			LineTotal:       LineTotal(price, req.Quantity, req.DiscountPercent),
			Notes:           trimNotes(req.Notes),
		})
	}
	return items, nil
}

// unitPrice picks the snapshot price for a line. Omitted or zero prices come
// from the resolver; under the strict policy a client's own submission must
// equal the resolved price.
func (s *Service) unitPrice(actor identity.Actor, client clients.Client, p catalog.Product, submitted *decimal.Decimal, field string) (decimal.Decimal, error) {
	if submitted == nil || submitted.IsZero() {
		return s.pricer.UnitPrice(p, client.Tier)
	}
	price := *submitted
	if price.IsNegative() {
		return decimal.Zero, shared.Validation(field+".unit_price", "must not be negative")
	}
	if !centPrecision(price) {
		return decimal.Zero, shared.Validation(field+".unit_price", "at most 2 decimal places")
	}
	if s.cfg.PricePolicy == PolicyStrict && actor.Can().Client {
		resolved, err := s.pricer.UnitPrice(p, client.Tier)
		if err != nil {
			return decimal.Zero, err
		}
		if !price.Equal(resolved) {
			return decimal.Zero, shared.Validation(field+".unit_price", "price %s does not match the current price %s for %s", price, resolved, p.SKU)
		}
	}
	return price, nil
}

func (s *Service) currency(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" {
		code = s.cfg.DefaultCurrency
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", shared.Validation("currency", "%q is not an ISO 4217 currency code", raw)
	}
	return unit.String(), nil
}

func (s *Service) validUntil(raw string, now time.Time) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return DateOf(now.Add(s.cfg.DefaultValidity)), nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, shared.Validation("valid_until", "must be an ISO date (YYYY-MM-DD)")
	}
	if Overdue(t, now) {
		return time.Time{}, shared.Validation("valid_until", "must not be in the past")
	}
	return DateOf(t), nil
}

// Get returns a quotation the actor may see, with its effective status.
func (s *Service) Get(ctx context.Context, actor identity.Actor, id int64) (*Quotation, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	visible, err := s.canSee(ctx, actor, *q)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, shared.NotFound("quotation", id)
	}
	q.Status = q.EffectiveStatus(s.now())
	return q, nil
}

// List returns the quotations visible to the actor with effective statuses.
func (s *Service) List(ctx context.Context, actor identity.Actor, filter ListFilter) ([]Quotation, int, error) {
	caps := actor.Can()
	switch {
	case caps.SeeAllClients:
	case caps.Client:
		if actor.ClientID == nil {
			return nil, 0, nil
		}
		filter.ScopeClientID = actor.ClientID
	case caps.OwnedClientsOnly:
		id := actor.ID
		filter.ScopeSalesRepID = &id
	default:
		return nil, 0, shared.Forbidden("role %s cannot list quotations", actor.Role)
	}
	now := s.now()
	filter.AsOf = DateOf(now)
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	for i := range items {
		items[i].Status = items[i].EffectiveStatus(now)
	}
	return items, total, nil
}

func (s *Service) canSee(ctx context.Context, actor identity.Actor, q Quotation) (bool, error) {
	caps := actor.Can()
	switch {
	case caps.SeeAllClients:
		return true, nil
	case caps.Client:
		return actor.OwnsClient(q.ClientID), nil
	case !caps.OwnedClientsOnly:
		return false, nil
	}
	if q.CreatedBy == actor.ID {
		return true, nil
	}
	c, err := s.clients.Lookup(ctx, q.ClientID)
	if err != nil {
		if shared.KindOf(err) == shared.KindNotFound {
			return false, nil
		}
		return false, err
	}
	return clients.CanAccess(actor, *c), nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "quotation",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("quotation audit", slog.String("action", action), slog.Any("error", err))
	}
}

// centPrecision reports whether d fits the two decimal places item prices
// and discounts are stored with; trailing zeros do not count.
func centPrecision(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

func trimNotes(n *string) *string {
	if n == nil {
		return nil
	}
	v := strings.TrimSpace(*n)
	if v == "" {
		return nil
	}
	return &v
}
