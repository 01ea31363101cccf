package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(adminRequestTotal) }

var adminRequestTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "admin_request_total",
		Help: "Tracks attempts to use admin-only API routes.",
	},
	[]string{"route", "status"}, // status: 'authorized', 'unauthorized', 'forbidden'
)

func IncAdminRequest(route, status string) {
	adminRequestTotal.WithLabelValues(norm(route), norm(status)).Inc()
}
