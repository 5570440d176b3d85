package users

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/tierquote/internal/identity"
	"github.com/odyssey-erp/tierquote/internal/platform/db"
	"github.com/odyssey-erp/tierquote/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	db db.DBTX
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// Get loads a user by id.
func (r *Repository) Get(ctx context.Context, id int64) (*User, error) {
	var u User
	var role string
	err := r.db.QueryRow(ctx, `
		SELECT id, full_name, email, role, client_id, is_active, created_at
		FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.FullName, &u.Email, &role, &u.ClientID, &u.IsActive, &u.CreatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, shared.NotFound("user", id)
		}
		return nil, err
	}
	u.Role = identity.Role(role)
	return &u, nil
}
