package quotations

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/tierquote/internal/identity"
)

func newTestRouter(f *fixture, actor *identity.Actor) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, f.svc)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(identity.ContextWithActor(req.Context(), *actor)))
		})
	})
	r.Route("/quotes", h.MountRoutes)
	return r
}

const createBody = `{
	"client_id": 100,
	"valid_until": "2025-03-31",
	"items": [
		{"product_id": 1, "quantity": 2, "unit_price": "100", "discount_percent": "10"},
		{"product_id": 2, "quantity": 1, "unit_price": "50"}
	]
}`

func TestHandlerCreateAndShow(t *testing.T) {
	f := newFixture(PolicyStrict)
	router := newTestRouter(f, &admin)

	req := httptest.NewRequest(http.MethodPost, "/quotes/", strings.NewReader(createBody))
	req.Header.Set("Idempotency-Key", "req-1")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	assert.Equal(t, "/quotes/1", res.Header().Get("Location"))

	var created QuotationResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &created))
	assert.Equal(t, "QT-2025-0001", created.QuotationNumber)
	assert.Equal(t, StatusDraft, created.Status)
	assert.Equal(t, "2025-03-31", created.ValidUntil)
	assert.True(t, created.TotalAmount.Equal(decimal.RequireFromString("230")), created.TotalAmount.String())
	require.Len(t, created.Items, 2)
	assert.Equal(t, "Pump", created.Items[0].Name)

	replay := httptest.NewRequest(http.MethodPost, "/quotes/", strings.NewReader(createBody))
	replay.Header.Set("Idempotency-Key", "req-1")
	res = httptest.NewRecorder()
	router.ServeHTTP(res, replay)
	assert.Equal(t, http.StatusConflict, res.Code)

	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/quotes/1", nil))
	require.Equal(t, http.StatusOK, res.Code)
}

func TestHandlerLifecycleStatusCodes(t *testing.T) {
	f := newFixture(PolicyStrict)
	actor := admin
	router := newTestRouter(f, &actor)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/quotes/", strings.NewReader(createBody)))
	require.Equal(t, http.StatusCreated, res.Code)

	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/quotes/1/confirm", nil))
	assert.Equal(t, http.StatusConflict, res.Code, "draft cannot be confirmed")
	assert.Contains(t, res.Body.String(), "invalid_state")

	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/quotes/1/send", nil))
	require.Equal(t, http.StatusOK, res.Code)

	actor = buyer
	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/quotes/1/confirm", nil))
	assert.Equal(t, http.StatusForbidden, res.Code)

	actor = admin
	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/quotes/1/confirm", nil))
	require.Equal(t, http.StatusOK, res.Code)
	var confirmed QuotationResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &confirmed))
	assert.Equal(t, StatusConfirmed, confirmed.Status)

	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/quotes/1/cancel", nil))
	assert.Equal(t, http.StatusConflict, res.Code)
}

func TestHandlerErrors(t *testing.T) {
	f := newFixture(PolicyStrict)
	router := newTestRouter(f, &salesRep)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"bad id", http.MethodGet, "/quotes/abc", "", http.StatusBadRequest},
		{"missing", http.MethodGet, "/quotes/99", "", http.StatusNotFound},
		{"bad status filter", http.MethodGet, "/quotes/?status=pending", "", http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/quotes/", "{", http.StatusBadRequest},
		{"foreign client", http.MethodPost, "/quotes/", `{"client_id":102,"items":[{"product_id":1,"quantity":1}]}`, http.StatusForbidden},
		{"no price", http.MethodPost, "/quotes/", `{"client_id":100,"items":[{"product_id":5,"quantity":1}]}`, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var body io.Reader
			if tc.body != "" {
				body = strings.NewReader(tc.body)
			}
			res := httptest.NewRecorder()
			router.ServeHTTP(res, httptest.NewRequest(tc.method, tc.path, body))
			assert.Equal(t, tc.status, res.Code, res.Body.String())
		})
	}
}

func TestHandlerListFiltersByStatus(t *testing.T) {
	f := newFixture(PolicyStrict)
	router := newTestRouter(f, &admin)
	for i := 0; i < 2; i++ {
		res := httptest.NewRecorder()
		router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/quotes/", strings.NewReader(createBody)))
		require.Equal(t, http.StatusCreated, res.Code)
	}
	f.repo.setStatus(2, StatusSent)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/quotes/?status=sent", nil))
	require.Equal(t, http.StatusOK, res.Code)
	var list struct {
		Items []QuotationResponse `json:"items"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, int64(2), list.Items[0].ID)
}
