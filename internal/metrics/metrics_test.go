package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.IncPaymentCreated("PRO")
	m.IncPaymentCreated("PRO")
	m.IncPaymentStatus("paid", "simulated")
	m.IncPlanTransition("PRO")
	m.ObserveAdmission("free", "admitted")
	m.ObserveAdmission("free", "file-limit")
	m.IncTokenIssued("password")
	m.ObservePaymentAmount(1599, "brl")

	assert.InDelta(t, 2, testutil.ToFloat64(m.paymentsCreated.WithLabelValues("PRO")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.paymentsStatus.WithLabelValues("paid", "simulated")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.planTransitions.WithLabelValues("PRO")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.admissions.WithLabelValues("free", "file-limit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.tokensIssued.WithLabelValues("password")), 0)

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 6)
}

func TestNewRegistry(t *testing.T) {
	registry := NewRegistry()
	New(registry)

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
