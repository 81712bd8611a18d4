package metrics_test

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-order-fulfillment/internal/metrics"
)

func Test_Registry_IsolatedAndExposed(t *testing.T) {
	a, b := metrics.NewRegistry(), metrics.NewRegistry()
	a.OrdersCreated.Inc()
	a.Failures.WithLabelValues("timeout").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.OrdersCreated))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.OrdersCreated), "registries do not share state")

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `fulfillment_failures_total{kind="timeout"} 1`)
}
