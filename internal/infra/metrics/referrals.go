package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"salon-billing/internal/domain/model"
)

func init() {
	register(
		referralDiscountsTotal,
		referralCouponCleanupFailures,
		referralBatchRunsTotal,
	)
}

var (
	referralDiscountsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_discounts_total",
			Help: "Per-tenant referral discount outcomes.",
		},
		[]string{"outcome"}, // applied, skipped, failed
	)

	referralCouponCleanupFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "referral_coupon_cleanup_failures_total",
			Help: "Coupons that could not be deleted at the end of a discount transaction.",
		},
	)

	referralBatchRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_batch_runs_total",
			Help: "Referral discount batch runs by status.",
		},
		[]string{"status"}, // completed, locked, error
	)
)

func (Recorder) ObserveDiscount(outcome model.OutcomeKind) {
	referralDiscountsTotal.WithLabelValues(norm(string(outcome))).Inc()
}

func (Recorder) CouponCleanupFailed() { referralCouponCleanupFailures.Inc() }

func (Recorder) ObserveBatchRun(status string) {
	referralBatchRunsTotal.WithLabelValues(norm(status)).Inc()
}
