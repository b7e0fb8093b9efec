//go:build !integration

package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salon-billing/internal/domain/model"
)

func TestRecorder_ObserveDispatch(t *testing.T) {
	var r Recorder
	before := testutil.ToFloat64(webhookEventsTotal.WithLabelValues("invoice.payment_failed", "duplicate"))
	r.ObserveDispatch("invoice.payment_failed", model.EventResultSuccess, true, 10*time.Millisecond)
	after := testutil.ToFloat64(webhookEventsTotal.WithLabelValues("invoice.payment_failed", "duplicate"))
	assert.Equal(t, before+1, after)
}

func TestRecorder_Referrals(t *testing.T) {
	var r Recorder
	before := testutil.ToFloat64(referralCouponCleanupFailures)
	r.CouponCleanupFailed()
	assert.Equal(t, before+1, testutil.ToFloat64(referralCouponCleanupFailures))

	applied := testutil.ToFloat64(referralDiscountsTotal.WithLabelValues(string(model.OutcomeApplied)))
	r.ObserveDiscount(model.OutcomeApplied)
	assert.Equal(t, applied+1, testutil.ToFloat64(referralDiscountsTotal.WithLabelValues(string(model.OutcomeApplied))))
}

func TestLabelsAreNormalized(t *testing.T) {
	IncProviderCall("  GetCustomer ", "")
	assert.GreaterOrEqual(t, testutil.ToFloat64(providerCallsTotal.WithLabelValues("getcustomer", "unknown")), 1.0)

}

func TestSetDBPoolStats(t *testing.T) {
	SetDBPoolStats(10, 4, 6)
	assert.Equal(t, 6.0, testutil.ToFloat64(dbPoolConnections.WithLabelValues("in_use")))
	assert.Equal(t, 4.0, testutil.ToFloat64(dbPoolConnections.WithLabelValues("idle")))
	assert.InDelta(t, 0.6, testutil.ToFloat64(dbPoolSaturation), 1e-9)

	SetDBPoolStats(0, 0, 0)
	assert.Equal(t, 0.0, testutil.ToFloat64(dbPoolSaturation), "empty pool")
}

func TestCollectorsRegisterCleanly(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	require.NotEmpty(t, collectors)
	require.NoError(t, RegisterWith(reg))
	assert.NoError(t, RegisterWith(reg), "second registration is a no-op")

	clash := prometheus.NewGauge(prometheus.GaugeOpts{Name: "build_info", Help: "other"})
	other := prometheus.NewPedanticRegistry()
	require.NoError(t, other.Register(clash))
	assert.Error(t, RegisterWith(other), "conflicting descriptor must surface")
}

func TestNorm(t *testing.T) {
	assert.Equal(t, "unknown", norm("  "))
	assert.Equal(t, "getcustomer", norm(" GetCustomer "))
	assert.Len(t, norm(strings.Repeat("x", 200)), maxLabelLen)
}
