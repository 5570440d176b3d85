package identity

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/odyssey-erp/tierquote/internal/platform/httpx"
	"github.com/odyssey-erp/tierquote/internal/shared"
)

// Resolver turns a bearer token into an actor.
type Resolver interface {
	Resolve(ctx context.Context, token string) (Actor, error)
}

// Middleware wires authentication and capability checks for HTTP handlers.
type Middleware struct {
	Resolver Resolver
	Logger   *slog.Logger
}

// Authenticate resolves the bearer token and stores the actor in the request context.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			httpx.Unauthorized(w, "missing bearer token")
			return
		}
		actor, err := m.Resolver.Resolve(r.Context(), token)
		if err != nil {
			if errors.Is(err, ErrInvalidToken) {
				httpx.Unauthorized(w, "invalid or expired token")
				return
			}
			if m.Logger != nil {
				m.Logger.Error("identity resolve token", slog.Any("error", err))
			}
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
	})
}

// Require ensures the current actor's capability set satisfies pred.
func (m Middleware) Require(name string, pred func(Capabilities) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				httpx.Unauthorized(w, "no authenticated actor")
				return
			}
			if !pred(actor.Can()) {
				httpx.RespondError(w, shared.Forbidden("role %s lacks capability %s", actor.Role, name))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireCatalogManager guards catalog mutations.
func (m Middleware) RequireCatalogManager() func(http.Handler) http.Handler {
	return m.Require("manage_catalog", func(c Capabilities) bool { return c.ManageCatalog })
}

// RequireClientManager guards client creation and edits.
func (m Middleware) RequireClientManager() func(http.Handler) http.Handler {
	return m.Require("manage_clients", func(c Capabilities) bool { return c.ManageClients })
}

func bearerToken(r *http.Request) (string, bool) {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(raw, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
