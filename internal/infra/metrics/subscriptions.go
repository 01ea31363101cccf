package metrics

import (
	"community-subscription-bot/internal/domain/model"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		entitlementGrantsTotal,
		subscriptionsActive,
	)
}

var (
	entitlementGrantsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_grants_total",
			Help: "Subscription rows written, by tier and source.",
		},
		[]string{"tier", "source"},
	)

	subscriptionsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "subscriptions_active",
			Help: "Users whose latest grant is running, by tier.",
		},
		[]string{"tier"},
	)
)

func IncEntitlementGrant(tier model.Tier, source string) {
	entitlementGrantsTotal.WithLabelValues(tier.String(), norm(source)).Inc()
}

func SetSubscriptionsActive(counts map[model.Tier]int) {
	for _, tier := range []model.Tier{model.TierChannel, model.TierChannelChat} {
		subscriptionsActive.WithLabelValues(tier.String()).Set(float64(counts[tier]))
	}
}
