package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg, nil))
	require.NoError(t, Register(reg, nil))
}

func TestHandlerExposesAuthCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg, nil))

	LoginsTotal.WithLabelValues(LoginCreated).Inc()

	ObserveHTTP(http.MethodGet, "/api/me", http.StatusOK, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	require.True(t, strings.Contains(body, "auth_logins_total"))
	require.True(t, strings.Contains(body, `route="/api/me"`))
}
