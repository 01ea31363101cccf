package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		PaymentWebhookDuration,
		paymentHooksTotal,
		paymentCheckoutTotal,
	)
}

var (
	// Latency of the notification handler grouped by provider and HTTP status class.
	PaymentWebhookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_webhook_duration_seconds",
			Help:    "Duration of payment notification handling in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"provider", "result"},
	)

	// hook: invites|confirmation; status: sent|error
	paymentHooksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_hooks_total",
			Help: "Post-commit payment side effects by hook and delivery status.",
		},
		[]string{"hook", "status"},
	)

	paymentCheckoutTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_checkout_total",
			Help: "Checkout link creation attempts by provider and result.",
		},
		[]string{"provider", "result"},
	)
)

func ObserveWebhook(provider, result string, seconds float64) {
	PaymentWebhookDuration.WithLabelValues(norm(provider), norm(result)).Observe(seconds)
}

func IncPaymentHook(hook, status string) {
	paymentHooksTotal.WithLabelValues(norm(hook), norm(status)).Inc()
}

func IncCheckout(provider, result string) {
	paymentCheckoutTotal.WithLabelValues(norm(provider), norm(result)).Inc()
}
