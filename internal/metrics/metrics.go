package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects generation-cycle counters for the /metrics endpoint.
type Metrics struct {
	CyclesTotal    *prometheus.CounterVec
	CycleDuration  prometheus.Histogram
	RegionsFetched prometheus.Counter
	RegionsDropped prometheus.Counter
	CycleInFlight  prometheus.Gauge
}

// New registers the collectors on the given registerer. Pass
// prometheus.DefaultRegisterer for the standard /metrics handler.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CyclesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mixboard",
			Name:      "generation_cycles_total",
			Help:      "Generation cycles by outcome.",
		}, []string{"outcome"}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mixboard",
			Name:      "generation_cycle_duration_seconds",
			Help:      "Wall time of a full generation cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		RegionsFetched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mixboard",
			Name:      "regions_fetched_total",
			Help:      "Region payloads fetched and merged into the layout.",
		}),
		RegionsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mixboard",
			Name:      "regions_dropped_total",
			Help:      "Regions dropped after exhausting fetch retries.",
		}),
		CycleInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "mixboard",
			Name:      "generation_cycle_in_flight",
			Help:      "Whether a generation cycle is currently running.",
		}),
	}
}

// ObserveCycle records one finished cycle.
func (m *Metrics) ObserveCycle(outcome string, seconds float64) {
	m.CyclesTotal.WithLabelValues(outcome).Inc()
	m.CycleDuration.Observe(seconds)
}
