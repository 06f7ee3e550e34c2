package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	ResultStored = "stored"
	ResultFailed = "failed"
)

// SubscriptionMetrics counts subscription attempts that reached the store.
type SubscriptionMetrics struct {
	SubscriptionsTotal *prometheus.CounterVec
}

// NewSubscriptionMetrics creates and registers subscription metrics on the given registry.
func NewSubscriptionMetrics(reg prometheus.Registerer) *SubscriptionMetrics {
	m := &SubscriptionMetrics{
		SubscriptionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscriptions_total",
			Help:      "Total number of subscription inserts, by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(m.SubscriptionsTotal)
	return m
}

// Record counts one insert outcome. Safe on a nil receiver.
func (m *SubscriptionMetrics) Record(result string) {
	if m == nil {
		return
	}
	m.SubscriptionsTotal.WithLabelValues(result).Inc()
}
