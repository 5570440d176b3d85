package clients

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/tierquote/internal/identity"
)

func newRouter(actor identity.Actor, repo Repository) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, newService(repo), identity.Middleware{Logger: logger})
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(identity.ContextWithActor(req.Context(), actor)))
		})
	})
	r.Route("/clients", h.MountRoutes)
	return r
}

func TestHandlerUpdateStatusCodes(t *testing.T) {
	body := `{"credit_limit":"7000"}`

	res := httptest.NewRecorder()
	newRouter(salesActor, newMockRepo(baseClient())).ServeHTTP(res, httptest.NewRequest(http.MethodPut, "/clients/1", strings.NewReader(body)))
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = httptest.NewRecorder()
	newRouter(adminActor, newMockRepo(baseClient())).ServeHTTP(res, httptest.NewRequest(http.MethodPut, "/clients/1", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	var resp ClientResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &resp))
	assert.Equal(t, "7000", resp.CreditLimit.String())
	assert.Equal(t, "Sari Sales", resp.SalesRepName)
}

func TestHandlerClientRoleCannotCreate(t *testing.T) {
	clientUser := identity.Actor{ID: 20, Role: identity.RoleClient, ClientID: ptr(int64(1))}
	res := httptest.NewRecorder()
	newRouter(clientUser, newMockRepo()).ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/clients/", strings.NewReader(`{"company_name":"x"}`)))
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestHandlerSalesViewOmitsRep(t *testing.T) {
	res := httptest.NewRecorder()
	newRouter(salesActor, newMockRepo(baseClient())).ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/clients/1", nil))
	require.Equal(t, http.StatusOK, res.Code)
	assert.NotContains(t, res.Body.String(), "sales_rep")
}
