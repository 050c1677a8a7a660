// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "freight"

// Metrics groups the collectors used by the ledger, the oracle and the broadcaster.
type Metrics struct {
	BidsAccepted     prometheus.Counter
	BidsRejected     *prometheus.CounterVec
	HighRiskBids     prometheus.Counter
	ProviderFailures *prometheus.CounterVec
	SurchargeSource  *prometheus.CounterVec
	SurchargeValue   prometheus.Gauge
	RouteCacheMisses prometheus.Counter
	Sessions         prometheus.Gauge
	Deliveries       prometheus.Counter
	DroppedDelivery  prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BidsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "bids_accepted_total",
			Help: "Bids committed against a master order.",
		}),
		BidsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "bids_rejected_total",
			Help: "Bids rejected, by reason.",
		}, []string{"reason"}),
		HighRiskBids: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "bids_high_risk_total",
			Help: "Committed bids whose price deviates beyond the risk threshold.",
		}),
		ProviderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "oracle", Name: "provider_failures_total",
			Help: "Rate fetches that failed, by provider.",
		}, []string{"provider"}),
		SurchargeSource: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "oracle", Name: "surcharge_computations_total",
			Help: "Surcharge recomputations, by source (consensus, primary, fallback).",
		}, []string{"source"}),
		SurchargeValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "oracle", Name: "fuel_surcharge",
			Help: "Last computed fuel surcharge rate.",
		}),
		RouteCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "oracle", Name: "route_cache_misses_total",
			Help: "Route price history lookups that scanned the backing store.",
		}),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "broadcast", Name: "sessions",
			Help: "Live client sessions.",
		}),
		Deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "broadcast", Name: "deliveries_total",
			Help: "Messages enqueued to client sessions.",
		}),
		DroppedDelivery: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "broadcast", Name: "dropped_deliveries_total",
			Help: "Messages that could not be enqueued to a session.",
		}),
	}

	reg.MustRegister(
		m.BidsAccepted, m.BidsRejected, m.HighRiskBids,
		m.ProviderFailures, m.SurchargeSource, m.SurchargeValue, m.RouteCacheMisses,
		m.Sessions, m.Deliveries, m.DroppedDelivery,
	)

	return m
}

// NewUnregistered creates collectors bound to a private registry. Used by tests
// and by components constructed without a shared registry.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
