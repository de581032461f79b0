package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/farmstandhq/farmstand-backend/pkg/config"
	"github.com/farmstandhq/farmstand-backend/pkg/logger"
)

func testRouter() http.Handler {
	return NewRouter(RouterParams{
		Config: &config.Config{App: config.AppConfig{Env: "dev"}},
		Logger: logger.New(logger.Options{ServiceName: "test"}),
	})
}

func TestRouterHealthLive(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	testRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dev", rec.Header().Get("X-Farmstand-Env"))
}

func TestRouterMountsCheckoutRoutes(t *testing.T) {
	// Unwired services answer 500, not 404/405: the route exists.
	for _, path := range []string{
		"/api/v1/checkout/orders",
		"/api/v1/checkout/session",
		"/api/v1/checkout/cash",
		"/api/v1/checkout/native",
		"/api/v1/orders/complete",
		"/api/v1/terminal/checkout",
	} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		rec := httptest.NewRecorder()
		testRouter().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusInternalServerError, rec.Code, path)
	}
}

func TestRouterUnknownRouteIs404(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	rec := httptest.NewRecorder()
	testRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterSetsRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	testRouter().ServeHTTP(rec, req)

	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}
