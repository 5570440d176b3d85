package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/tierquote/internal/app"
	"github.com/odyssey-erp/tierquote/internal/catalog"
	"github.com/odyssey-erp/tierquote/internal/clients"
	"github.com/odyssey-erp/tierquote/internal/identity"
	"github.com/odyssey-erp/tierquote/internal/observability"
	"github.com/odyssey-erp/tierquote/internal/platform/cache"
	"github.com/odyssey-erp/tierquote/internal/pricing"
	"github.com/odyssey-erp/tierquote/internal/quotations"
	"github.com/odyssey-erp/tierquote/internal/shared"
	"github.com/odyssey-erp/tierquote/internal/users"
	_ "github.com/odyssey-erp/tierquote/testing"
)

const (
	adminID int64 = 1
	salesID int64 = 5
	buyerID int64 = 30
)

type stack struct {
	server  *httptest.Server
	tokens  *identity.TokenStore
	users   userStore
	metrics *observability.Metrics
}

func newStack(t *testing.T) *stack {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &app.Config{
		AppEnv:               "test",
		RateLimitPerMinute:   1000,
		QuotePricePolicy:     string(quotations.PolicyStrict),
		QuoteDefaultCurrency: "USD",
		QuoteDefaultValidity: 30 * 24 * time.Hour,
	}
	clientID := int64(1)
	people := userStore{
		adminID: {ID: adminID, FullName: "Ada Admin", Email: "admin@example.com", Role: identity.RoleAdmin, IsActive: true},
		salesID: {ID: salesID, FullName: "Sam Sales", Email: "sam@example.com", Role: identity.RoleSales, IsActive: true},
		buyerID: {ID: buyerID, FullName: "Bea Buyer", Email: "bea@acme.test", Role: identity.RoleClient, ClientID: &clientID, IsActive: true},
	}

	metrics := observability.NewMetrics()
	userSvc := users.NewService(people)
	catalogSvc := catalog.NewService(newProductStore(), cache.NewVersioned(rdb, "catalog", time.Minute), shared.NopAudit{}, logger)
	clientRepo := newClientStore()
	clientSvc := clients.NewService(clientRepo, userSvc, shared.NopAudit{}, logger)
	pricingSvc := pricing.NewService(clientSvc, catalogSvc, metrics)
	quoteSvc := quotations.NewService(newQuoteStore(clientRepo), clientSvc, catalogSvc, pricingSvc, cfg.Quotations(), logger).
		WithObserver(metrics)

	tokens := identity.NewTokenStore(rdb, "e2e:token")
	guard := identity.Middleware{Resolver: tokens, Logger: logger}
	handler := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Identity:          guard,
		CatalogHandler:    catalog.NewHandler(logger, catalogSvc, pricingSvc, guard),
		ClientsHandler:    clients.NewHandler(logger, clientSvc, guard),
		PricingHandler:    pricing.NewHandler(logger, pricingSvc),
		QuotationsHandler: quotations.NewHandler(logger, quoteSvc),
		Metrics:           metrics,
	})
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return &stack{server: server, tokens: tokens, users: people, metrics: metrics}
}

func (s *stack) token(t *testing.T, userID int64) string {
	t.Helper()
	token, err := s.tokens.Issue(testContext(t), s.users[userID].Actor(), time.Hour)
	require.NoError(t, err)
	return token
}

func (s *stack) call(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(testContext(t), method, s.server.URL+path, payload)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := s.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Body.Close() })
	return res
}

func decode[T any](t *testing.T, res *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return out
}

func TestQuoteLifecycleAcrossRoles(t *testing.T) {
	s := newStack(t)
	admin, sales, buyer := s.token(t, adminID), s.token(t, salesID), s.token(t, buyerID)

	res := s.call(t, http.MethodPost, "/products", admin, map[string]any{
		"sku":         "W-1",
		"name":        "Widget",
		"tier_prices": map[string]string{"X": "8.50", "S": "9.25", "A": "10.00"},
	})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	res = s.call(t, http.MethodPost, "/products", admin, map[string]any{
		"sku":         "G-2",
		"name":        "Gadget",
		"tier_prices": map[string]string{"A": "24.00"},
	})
	require.Equal(t, http.StatusCreated, res.StatusCode)

	res = s.call(t, http.MethodPost, "/clients", buyer, map[string]any{"company_name": "Shadow Co"})
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res = s.call(t, http.MethodPost, "/clients", admin, map[string]any{
		"company_name": "Acme",
		"email":        "purchasing@acme.test",
		"tier":         "X",
		"sales_rep_id": salesID,
	})
	require.Equal(t, http.StatusCreated, res.StatusCode)

	// Buyers see their own price, never the tier map.
	res = s.call(t, http.MethodGet, "/products", buyer, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	listing := decode[catalog.ListResponse](t, res)
	require.Len(t, listing.Items, 2)
	for _, p := range listing.Items {
		assert.Nil(t, p.TierPrices, p.SKU)
		require.NotNil(t, p.CurrentPrice, p.SKU)
	}
	bySKU := map[string]catalog.ProductResponse{}
	for _, p := range listing.Items {
		bySKU[p.SKU] = p
	}
	assert.True(t, decimal.RequireFromString("8.50").Equal(*bySKU["W-1"].CurrentPrice))
	assert.True(t, decimal.RequireFromString("24").Equal(*bySKU["G-2"].CurrentPrice))

	res = s.call(t, http.MethodGet, "/products", sales, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	staffView := decode[catalog.ListResponse](t, res)
	for _, p := range staffView.Items {
		assert.NotEmpty(t, p.TierPrices, p.SKU)
	}

	res = s.call(t, http.MethodGet, "/pricing/products/2", buyer, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res = s.call(t, http.MethodPost, "/quotes", buyer, map[string]any{
		"client_id": 1,
		"items": []map[string]any{
			{"product_id": 1, "quantity": 10},
			{"product_id": 2, "quantity": 1, "discount_percent": "50"},
		},
	})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	quote := decode[quotations.QuotationResponse](t, res)
	assert.True(t, strings.HasPrefix(quote.QuotationNumber, "QT-"), quote.QuotationNumber)
	assert.Equal(t, quotations.StatusDraft, quote.Status)
	assert.Equal(t, "USD", quote.Currency)
	assert.True(t, decimal.RequireFromString("97").Equal(quote.TotalAmount), quote.TotalAmount.String())

	path := "/quotes/" + strconv.FormatInt(quote.ID, 10)
	res = s.call(t, http.MethodPost, path+"/send", buyer, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, quotations.StatusSent, decode[quotations.QuotationResponse](t, res).Status)

	res = s.call(t, http.MethodPost, path+"/confirm", buyer, nil)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res = s.call(t, http.MethodPost, path+"/confirm", sales, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, quotations.StatusConfirmed, decode[quotations.QuotationResponse](t, res).Status)

	res = s.call(t, http.MethodPost, path+"/cancel", sales, nil)
	assert.Equal(t, http.StatusConflict, res.StatusCode)

	res = s.call(t, http.MethodGet, "/quotes", buyer, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	mine := decode[quotations.ListResponse](t, res)
	require.Len(t, mine.Items, 1)
	assert.Equal(t, quote.ID, mine.Items[0].ID)

	res = s.call(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "tierquote_quotations_created_total")
}

func TestBuyerCannotQuoteForAnotherClient(t *testing.T) {
	s := newStack(t)
	admin, buyer := s.token(t, adminID), s.token(t, buyerID)

	for _, name := range []string{"Acme", "Globex"} {
		res := s.call(t, http.MethodPost, "/clients", admin, map[string]any{"company_name": name, "tier": "S"})
		require.Equal(t, http.StatusCreated, res.StatusCode)
	}
	res := s.call(t, http.MethodPost, "/products", admin, map[string]any{
		"sku":         "W-1",
		"name":        "Widget",
		"tier_prices": map[string]string{"S": "9.25", "A": "10.00"},
	})
	require.Equal(t, http.StatusCreated, res.StatusCode)

	res = s.call(t, http.MethodPost, "/quotes", buyer, map[string]any{
		"client_id": 2,
		"items":     []map[string]any{{"product_id": 1, "quantity": 1}},
	})
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res = s.call(t, http.MethodGet, "/clients/2", buyer, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

// testContext stands in for testing.T.Context, which needs Go 1.24.
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
