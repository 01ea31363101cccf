package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		paymentAmountMismatchTotal,
	)
}

var (
	// outcome: applied|duplicate|ignored|auth_failed|malformed|unknown_user|transient
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Reconciled payment notifications by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "The total monetary value of applied payments, labeled by currency.",
		},
		[]string{"currency"},
	)

	paymentAmountMismatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_amount_mismatch_total",
			Help: "Applied payments whose amount differs from the catalogue price.",
		},
		[]string{"provider"},
	)
)

func IncPayment(provider, outcome string) {
	paymentsTotal.WithLabelValues(norm(provider), norm(outcome)).Inc()
}

func AddPaymentRevenue(currency string, amount float64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(amount)
}

func IncPaymentAmountMismatch(provider string) {
	paymentAmountMismatchTotal.WithLabelValues(norm(provider)).Inc()
}
