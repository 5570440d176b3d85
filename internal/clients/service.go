package clients

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/tierquote/internal/catalog"
	"github.com/odyssey-erp/tierquote/internal/identity"
	"github.com/odyssey-erp/tierquote/internal/shared"
	"github.com/odyssey-erp/tierquote/internal/users"
)

// RepDirectory looks up sales reps.
type RepDirectory interface {
	Get(ctx context.Context, id int64) (*users.User, error)
	SalesRep(ctx context.Context, id int64) (*users.User, error)
}

// Service applies role scoped client reads and writes.
type Service struct {
	repo     Repository
	reps     RepDirectory
	audit    shared.AuditRecorder
	validate *validator.Validate
	logger   *slog.Logger
}

func NewService(repo Repository, reps RepDirectory, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if audit == nil {
		audit = shared.NopAudit{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, reps: reps, audit: audit, validate: shared.NewValidator(), logger: logger}
}

// Create registers a client. Sales users become the rep of clients they
// create and get the default commercial terms.
func (s *Service) Create(ctx context.Context, actor identity.Actor, req CreateClientRequest) (*Client, error) {
	caps := actor.Can()
	if !caps.ManageClients {
		return nil, shared.Forbidden("role %s cannot manage clients", actor.Role)
	}
	if err := shared.ValidateStruct(s.validate, req); err != nil {
		return nil, err
	}

	c := Client{
		CompanyName:      strings.TrimSpace(req.CompanyName),
		ContactPerson:    strings.TrimSpace(req.ContactPerson),
		Email:            strings.TrimSpace(req.Email),
		Phone:            strings.TrimSpace(req.Phone),
		Address:          req.Address,
		TaxID:            strings.TrimSpace(req.TaxID),
		PaymentTermsDays: DefaultPaymentTermsDays,
		CreditLimit:      decimal.Zero,
		Tier:             DefaultTier,
		IsActive:         true,
	}
	if req.IsActive != nil {
		c.IsActive = *req.IsActive
	}

	// Commercial terms go through the same gate as updates, measured against the defaults.
	patched, err := ApplyUpdate(c, UpdateClientRequest{
		PaymentTermsDays: req.PaymentTermsDays,
		CreditLimit:      req.CreditLimit,
		Tier:             req.Tier,
	}, caps)
	if err != nil {
		return nil, err
	}
	c = patched

	switch {
	case caps.AssignSalesRep:
		if req.SalesRepID != nil && *req.SalesRepID != 0 {
			if _, err := s.reps.SalesRep(ctx, *req.SalesRepID); err != nil {
				return nil, err
			}
			rep := *req.SalesRepID
			c.SalesRepID = &rep
		}
	default:
		if req.SalesRepID != nil && *req.SalesRepID != actor.ID {
			return nil, shared.Forbidden("assigning a sales rep requires admin")
		}
		rep := actor.ID
		c.SalesRepID = &rep
	}

	if err := s.ensureEmailFree(ctx, c.Email, 0); err != nil {
		return nil, err
	}
	id, err := s.repo.Create(ctx, c)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, "client.create", id, map[string]any{"company_name": c.CompanyName, "tier": c.Tier})
	return s.repo.Get(ctx, id)
}

// Update patches a client the actor manages.
func (s *Service) Update(ctx context.Context, actor identity.Actor, id int64, req UpdateClientRequest) (*Client, error) {
	caps := actor.Can()
	if !caps.ManageClients {
		return nil, shared.Forbidden("role %s cannot manage clients", actor.Role)
	}
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanAccess(actor, *existing) {
		return nil, shared.Forbidden("client %d is not assigned to user %d", id, actor.ID)
	}
	updated, err := ApplyUpdate(*existing, req, caps)
	if err != nil {
		return nil, err
	}
	if updated.SalesRepID != nil && !sameRep(existing.SalesRepID, updated.SalesRepID) {
		if _, err := s.reps.SalesRep(ctx, *updated.SalesRepID); err != nil {
			return nil, err
		}
	}
	if !strings.EqualFold(updated.Email, existing.Email) {
		if err := s.ensureEmailFree(ctx, updated.Email, id); err != nil {
			return nil, err
		}
	}
	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, err
	}
	s.record(ctx, actor, "client.update", id, changes(*existing, updated))
	return s.repo.Get(ctx, id)
}

// Get returns a client the actor may see. Clients outside the actor's scope
// are reported as not found.
func (s *Service) Get(ctx context.Context, actor identity.Actor, id int64) (*Client, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanAccess(actor, *c) {
		return nil, shared.NotFound("client", id)
	}
	return c, nil
}

// Lookup loads a client without scoping, for collaborators that apply
// their own access rules.
func (s *Service) Lookup(ctx context.Context, id int64) (*Client, error) {
	return s.repo.Get(ctx, id)
}

// List returns the page of clients visible to the actor.
func (s *Service) List(ctx context.Context, actor identity.Actor, filter ListFilter) ([]Client, int, error) {
	caps := actor.Can()
	switch {
	case caps.SeeAllClients:
	case caps.Client:
		if actor.ClientID == nil {
			return nil, 0, nil
		}
		filter.ClientID = actor.ClientID
	case caps.OwnedClientsOnly:
		id := actor.ID
		filter.SalesRepID = &id
	default:
		return nil, 0, shared.Forbidden("role %s cannot list clients", actor.Role)
	}
	return s.repo.List(ctx, filter)
}

// Present renders c for actor, resolving the rep name for those allowed to see it.
func (s *Service) Present(ctx context.Context, actor identity.Actor, c Client) ClientResponse {
	resp := ClientResponse{
		ID:               c.ID,
		CompanyName:      c.CompanyName,
		ContactPerson:    c.ContactPerson,
		Email:            c.Email,
		Phone:            c.Phone,
		Address:          c.Address,
		TaxID:            c.TaxID,
		PaymentTermsDays: c.PaymentTermsDays,
		CreditLimit:      c.CreditLimit,
		Tier:             string(c.Tier),
		IsActive:         c.IsActive,
	}
	if !actor.Can().AssignSalesRep || c.SalesRepID == nil {
		return resp
	}
	resp.SalesRepID = c.SalesRepID
	rep, err := s.reps.Get(ctx, *c.SalesRepID)
	if err != nil {
		s.logger.Warn("sales rep lookup", slog.Int64("client_id", c.ID), slog.Any("error", err))
		return resp
	}
	resp.SalesRepName = rep.FullName
	return resp
}

// TierOf returns the pricing tier for clientID.
func (s *Service) TierOf(ctx context.Context, clientID int64) (catalog.Tier, error) {
	c, err := s.repo.Get(ctx, clientID)
	if err != nil {
		return "", err
	}
	return c.Tier, nil
}

func (s *Service) ensureEmailFree(ctx context.Context, email string, excludeID int64) error {
	if email == "" {
		return nil
	}
	taken, err := s.repo.EmailTaken(ctx, email, excludeID)
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if taken {
		return shared.Conflict("email", "email %s already registered", email)
	}
	return nil
}

func (s *Service) record(ctx context.Context, actor identity.Actor, action string, id int64, meta map[string]any) {
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "client",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("client audit", slog.String("action", action), slog.Any("error", err))
	}
}

func changes(before, after Client) map[string]any {
	meta := map[string]any{}
	if before.Tier != after.Tier {
		meta["tier"] = []string{string(before.Tier), string(after.Tier)}
	}
	if before.PaymentTermsDays != after.PaymentTermsDays {
		meta["payment_terms_days"] = []int{before.PaymentTermsDays, after.PaymentTermsDays}
	}
	if !before.CreditLimit.Equal(after.CreditLimit) {
		meta["credit_limit"] = []string{before.CreditLimit.StringFixed(2), after.CreditLimit.StringFixed(2)}
	}
	if !sameRep(before.SalesRepID, after.SalesRepID) {
		meta["sales_rep_id"] = after.SalesRepID
	}
	return meta
}
