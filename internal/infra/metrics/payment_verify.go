package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentSignatureChecks,
		paymentProviderCallDuration,
	)
}

var (
	// result: ok|missing|mismatch|bad_body
	paymentSignatureChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_signature_checks_total",
			Help: "Inbound payment notification signature checks by provider and result.",
		},
		[]string{"provider", "result"},
	)

	// Latency of outbound provider API calls.
	paymentProviderCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_provider_call_duration_seconds",
			Help:    "Duration of outbound payment provider calls in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"provider", "op", "result"},
	)
)

func IncSignatureCheck(provider, result string) {
	paymentSignatureChecks.WithLabelValues(norm(provider), norm(result)).Inc()
}

func ObserveProviderCall(provider, op, result string, seconds float64) {
	paymentProviderCallDuration.WithLabelValues(norm(provider), norm(op), norm(result)).Observe(seconds)
}
