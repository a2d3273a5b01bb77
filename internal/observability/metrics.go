// internal/observability/metrics.go
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the Prometheus instruments the pipeline components share.
// A single instance is created at wiring time and injected; tests construct
// their own against a private registry to avoid duplicate registration.
type Metrics struct {
	AgentRuns       *prometheus.CounterVec
	AgentErrors     *prometheus.CounterVec
	AgentDuration   *prometheus.HistogramVec
	EventsPublished *prometheus.CounterVec
	PublishFailures *prometheus.CounterVec
	EventsConsumed  *prometheus.CounterVec
	BreakerState    *prometheus.GaugeVec
}

// NewMetrics registers the pipeline instruments with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AgentRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_agent_runs_total",
			Help: "Number of analysis passes started, per agent.",
		}, []string{"agent"}),
		AgentErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_agent_errors_total",
			Help: "Number of failed analysis passes, per agent.",
		}, []string{"agent"}),
		AgentDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sentinel_agent_duration_seconds",
			Help:    "Wall-clock duration of analysis passes, per agent.",
			Buckets: prometheus.DefBuckets,
		}, []string{"agent"}),
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_events_published_total",
			Help: "Events successfully published, per topic.",
		}, []string{"topic"}),
		PublishFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_publish_failures_total",
			Help: "Events that failed to publish, per topic.",
		}, []string{"topic"}),
		EventsConsumed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_events_consumed_total",
			Help: "Events handled by the consumer, per topic.",
		}, []string{"topic"}),
		BreakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sentinel_breaker_state",
			Help: "Circuit breaker state per agent (0 closed, 1 half-open, 2 open).",
		}, []string{"agent"}),
	}
}

// NewTestMetrics returns instruments bound to a throwaway registry.
func NewTestMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
