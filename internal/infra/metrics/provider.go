package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(providerCallsTotal) }

var providerCallsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "billing_provider_calls_total",
		Help: "Billing provider API calls by operation and result.",
	},
	[]string{"op", "result"}, // result: ok, transient, error
)

func IncProviderCall(op, result string) {
	providerCallsTotal.WithLabelValues(norm(op), norm(result)).Inc()
}
