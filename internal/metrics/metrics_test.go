package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAreIndependentPerInstance(t *testing.T) {
	a, b := New(), New()
	a.Transactions.WithLabelValues("debt").Inc()
	a.Transactions.WithLabelValues("debt").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(a.Transactions.WithLabelValues("debt")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Transactions.WithLabelValues("debt")))
}

func TestHandlerExposesLedgerMetrics(t *testing.T) {
	m := New()
	m.Resets.Inc()
	m.ObserveHTTP(http.MethodGet, "/api/customers", http.StatusOK, 12*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "ledger_resets_total 1")
	assert.Contains(t, body, `ledger_http_request_duration_seconds_count{method="GET",route="/api/customers",status="200"} 1`)
}
