package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/auth/confirmed_email/{token}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	before := testutil.ToFloat64(RequestCount.WithLabelValues(http.MethodGet, "/auth/confirmed_email/{token}", "400"))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/auth/confirmed_email/secret-token", nil))

	after := testutil.ToFloat64(RequestCount.WithLabelValues(http.MethodGet, "/auth/confirmed_email/{token}", "400"))
	assert.Equal(t, before+1, after)
}

func TestHandlerExposesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	Register(registry)

	SessionsRevoked.WithLabelValues(ReasonLogout).Inc()

	w := httptest.NewRecorder()
	Handler(registry).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "auth_sessions_revoked_total"))
	assert.NotContains(t, w.Body.String(), "secret-token")
}
