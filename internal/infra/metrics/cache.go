package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(ledgerCacheRequestsTotal) }

var ledgerCacheRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ledger_cache_requests_total",
		Help: "Webhook ledger cache lookups by result.",
	},
	[]string{"result"}, // hit, miss, error
)

func IncLedgerCache(result string) {
	ledgerCacheRequestsTotal.WithLabelValues(norm(result)).Inc()
}
