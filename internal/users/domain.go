package users

import (
	"time"

	"github.com/odyssey-erp/tierquote/internal/identity"
)

// User represents an account that can act on the system.
type User struct {
	ID        int64
	FullName  string
	Email     string
	Role      identity.Role
	ClientID  *int64
	IsActive  bool
	CreatedAt time.Time
}

// Actor returns the acting identity for u.
func (u User) Actor() identity.Actor {
	return identity.Actor{ID: u.ID, FullName: u.FullName, Email: u.Email, Role: u.Role, ClientID: u.ClientID}
}
