package observability

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordGuardrailCheck(t *testing.T) {
	m := getMetrics()
	before := testutil.ToFloat64(m.guardrailBlocks.WithLabelValues("financial_advice"))

	RecordGuardrailCheck("financial_advice", false)
	RecordGuardrailCheck("none", true)

	after := testutil.ToFloat64(m.guardrailBlocks.WithLabelValues("financial_advice"))
	assert.Equal(t, before+1, after)
}

func TestRecordAgentRequestCountsRetries(t *testing.T) {
	m := getMetrics()
	before := testutil.ToFloat64(m.agentRetries.WithLabelValues("hr"))

	RecordAgentRequest("hr", 20*time.Millisecond, false, 3)

	assert.Equal(t, before+2, testutil.ToFloat64(m.agentRetries.WithLabelValues("hr")))
}

func TestRecordSessionStoreOp(t *testing.T) {
	m := getMetrics()
	before := testutil.ToFloat64(m.sessionStoreOps.WithLabelValues("memory", "save", "error"))

	RecordSessionStoreOp("memory", "save", time.Millisecond, errors.New("boom"))

	assert.Equal(t, before+1, testutil.ToFloat64(m.sessionStoreOps.WithLabelValues("memory", "save", "error")))
}

func TestMetricsHandler(t *testing.T) {
	RecordRoutingDecision("analytics", 0.8)

	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "eap_routing_decisions_total")
}
