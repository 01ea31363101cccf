package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		membershipChecksTotal,
		membershipSweepDuration,
		expiryRemindersTotal,
	)
}

var (
	// result: kept|banned|skipped|error
	membershipChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membership_checks_total",
			Help: "Per-user membership decisions made by the enforcer.",
		},
		[]string{"result"},
	)

	membershipSweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "membership_sweep_duration_seconds",
			Help:    "Wall time of one full membership sweep.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)

	// status: sent|skipped|error
	expiryRemindersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expiry_reminders_total",
			Help: "Expiry reminders by delivery status.",
		},
		[]string{"status"},
	)
)

func IncMembershipCheck(result string) {
	membershipChecksTotal.WithLabelValues(norm(result)).Inc()
}

func ObserveMembershipSweep(seconds float64) {
	membershipSweepDuration.Observe(seconds)
}

func IncExpiryReminder(status string) {
	expiryRemindersTotal.WithLabelValues(norm(status)).Inc()
}
