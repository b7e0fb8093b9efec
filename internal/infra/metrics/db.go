package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(dbPoolConnections, dbPoolSaturation) }

var (
	dbPoolConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_pool_connections",
			Help: "Postgres pool connections by state.",
		},
		[]string{"state"},
	)
	dbPoolSaturation = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "db_pool_saturation_ratio",
		Help: "Share of open Postgres connections that are checked out.",
	})
)

// SetDBPoolStats publishes one pool sample. An empty pool reports zero saturation.
func SetDBPoolStats(total, idle, inUse int32) {
	for state, n := range map[string]int32{"total": total, "idle": idle, "in_use": inUse} {
		dbPoolConnections.WithLabelValues(state).Set(float64(n))
	}
	ratio := 0.0
	if total > 0 {
		ratio = float64(inUse) / float64(total)
	}
	dbPoolSaturation.Set(ratio)
}
