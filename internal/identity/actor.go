package identity

import "context"

// Actor is the already authenticated user a core operation runs on behalf of.
type Actor struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     Role   `json:"role"`
	// ClientID links a client-role user to exactly one client.
	ClientID *int64 `json:"client_id,omitempty"`
}

// Can exposes the actor's capability set.
func (a Actor) Can() Capabilities {
	return a.Role.Capabilities()
}

// Privileged reports whether the actor acts for the business.
func (a Actor) Privileged() bool {
	return a.Role.Privileged()
}

// OwnsClient reports whether a client-role actor is linked to clientID.
func (a Actor) OwnsClient(clientID int64) bool {
	return a.ClientID != nil && *a.ClientID == clientID
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
