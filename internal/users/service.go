package users

import (
	"context"
	"time"

	"github.com/odyssey-erp/tierquote/internal/identity"
	"github.com/odyssey-erp/tierquote/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (*User, error)
}

// TokenIssuer hands out bearer tokens for an actor.
type TokenIssuer interface {
	Issue(ctx context.Context, actor identity.Actor, ttl time.Duration) (string, error)
}

// Service is a read-only user directory.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Get returns the user with id.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.Get(ctx, id)
}

// SalesRep returns the user when id names an active sales user.
func (s *Service) SalesRep(ctx context.Context, id int64) (*User, error) {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		if shared.KindOf(err) == shared.KindNotFound {
			return nil, shared.Validation("sales_rep_id", "user %d does not exist", id)
		}
		return nil, err
	}
	if u.Role != identity.RoleSales || !u.IsActive {
		return nil, shared.Validation("sales_rep_id", "user %d is not an active sales user", id)
	}
	return u, nil
}

// IssueToken mints a bearer token for an active user.
func (s *Service) IssueToken(ctx context.Context, id int64, issuer TokenIssuer, ttl time.Duration) (string, error) {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if !u.IsActive {
		return "", shared.Forbidden("user %d is inactive", id)
	}
	return issuer.Issue(ctx, u.Actor(), ttl)
}
