package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"salon-billing/internal/domain/model"
)

func init() {
	register(
		webhookEventsTotal,
		webhookDispatchDuration,
	)
}

var (
	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Provider webhook events by type and ledger result (duplicate for idempotent replays).",
		},
		[]string{"type", "result"},
	)

	webhookDispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_dispatch_duration_seconds",
			Help:    "Time spent dispatching one provider event.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"type"},
	)
)

func IncWebhookEvent(eventType, result string) {
	webhookEventsTotal.WithLabelValues(norm(eventType), norm(result)).Inc()
}

// Recorder adapts the package-level collectors to the usecase observer interfaces.
type Recorder struct{}

func (Recorder) ObserveDispatch(eventType string, result model.EventResult, duplicate bool, d time.Duration) {
	label := string(result)
	if duplicate {
		label = "duplicate"
	}
	IncWebhookEvent(eventType, label)
	webhookDispatchDuration.WithLabelValues(norm(eventType)).Observe(d.Seconds())
}
