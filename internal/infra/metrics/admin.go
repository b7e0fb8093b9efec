package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(adminRequestsTotal) }

var adminRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "admin_requests_total",
		Help: "Admin API requests by auth method and status.",
	},
	[]string{"method", "status"}, // method: api_key, jwt, none; status: authorized, unauthorized
)

func IncAdminRequest(method, status string) {
	adminRequestsTotal.WithLabelValues(norm(method), norm(status)).Inc()
}
