package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/tierquote/internal/identity"
	"github.com/odyssey-erp/tierquote/internal/shared"
)

type mapRepo map[int64]User

func (m mapRepo) Get(ctx context.Context, id int64) (*User, error) {
	u, ok := m[id]
	if !ok {
		return nil, shared.NotFound("user", id)
	}
	return &u, nil
}

type captureIssuer struct {
	actor identity.Actor
}

func (c *captureIssuer) Issue(ctx context.Context, actor identity.Actor, ttl time.Duration) (string, error) {
	c.actor = actor
	return "tok", nil
}

func TestSalesRep(t *testing.T) {
	svc := NewService(mapRepo{
		1: {ID: 1, Role: identity.RoleSales, IsActive: true},
		2: {ID: 2, Role: identity.RoleAdmin, IsActive: true},
		3: {ID: 3, Role: identity.RoleSales, IsActive: false},
	})
	ctx := context.Background()

	u, err := svc.SalesRep(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)

	for _, id := range []int64{2, 3, 4} {
		_, err := svc.SalesRep(ctx, id)
		assert.ErrorIs(t, err, shared.ErrValidation, "user %d", id)
	}
}

func TestIssueToken(t *testing.T) {
	clientID := int64(7)
	svc := NewService(mapRepo{
		1: {ID: 1, FullName: "Rina", Role: identity.RoleClient, ClientID: &clientID, IsActive: true},
		2: {ID: 2, Role: identity.RoleSales},
	})
	issuer := &captureIssuer{}

	token, err := svc.IssueToken(context.Background(), 1, issuer, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
	assert.True(t, issuer.actor.OwnsClient(7))

	_, err = svc.IssueToken(context.Background(), 2, issuer, time.Hour)
	assert.ErrorIs(t, err, shared.ErrAuthorization)
}
