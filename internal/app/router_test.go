package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/tierquote/internal/identity"
	"github.com/odyssey-erp/tierquote/internal/observability"
	_ "github.com/odyssey-erp/tierquote/testing"
)

type routerFixture struct {
	handler http.Handler
	tokens  *identity.TokenStore
	metrics *observability.Metrics
}

func newRouterFixture(t *testing.T, cfg *Config) routerFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	if cfg == nil {
		cfg = &Config{AppEnv: "test", RateLimitPerMinute: 1000}
	}
	logger := newLogger(cfg, &discard{})
	tokens := identity.NewTokenStore(client, "test:token")
	metrics := observability.NewMetrics()
	return routerFixture{
		handler: NewRouter(RouterParams{
			Logger:   logger,
			Config:   cfg,
			Identity: identity.Middleware{Resolver: tokens, Logger: logger},
			Metrics:  metrics,
		}),
		tokens:  tokens,
		metrics: metrics,
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func (f routerFixture) do(t *testing.T, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthzAndSecureHeaders(t *testing.T) {
	f := newRouterFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newRouterFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/me", "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	clientID := int64(7)
	token, err := f.tokens.Issue(context.Background(), identity.Actor{ID: 3, Role: identity.RoleClient, ClientID: &clientID}, time.Hour)
	require.NoError(t, err)

	rec = f.do(t, http.MethodGet, "/me", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var actor identity.Actor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &actor))
	assert.Equal(t, int64(3), actor.ID)
	assert.Equal(t, identity.RoleClient, actor.Role)
	require.NotNil(t, actor.ClientID)
	assert.Equal(t, int64(7), *actor.ClientID)
}

func TestUnknownRouteIsProblemJSON(t *testing.T) {
	f := newRouterFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "json")
}

func TestRateLimitByIP(t *testing.T) {
	f := newRouterFixture(t, &Config{AppEnv: "test", RateLimitPerMinute: 2})

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, f.do(t, http.MethodGet, "/healthz", "").Code)
}

func TestMetricsEndpointCountsRequests(t *testing.T) {
	f := newRouterFixture(t, nil)

	f.do(t, http.MethodGet, "/healthz", "")
	rec := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tierquote_http_requests_total")
}
