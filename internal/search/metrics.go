package search

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricSearchOutcomes = "search_requests_total"
	MetricStageLatency   = "search_stage_latency_seconds"
	MetricRankedExperts  = "search_ranked_experts"
)

// Outcome labels for the request counter.
const (
	OutcomeCompleted        = "completed"
	OutcomeEmpty            = "empty"
	OutcomeInvalidInput     = "invalid_input"
	OutcomeExtractionFailed = "extraction_failed"
	OutcomeStoreFailed      = "store_unavailable"
)

// Metrics contains Prometheus metrics for the search pipeline.
// All operations are thread-safe. A nil *Metrics is a no-op, so callers can
// run uninstrumented.
type Metrics struct {
	outcomes      *prometheus.CounterVec
	stageLatency  *prometheus.HistogramVec
	rankedExperts prometheus.Histogram
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register
// them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricSearchOutcomes,
			Help: "Total number of search requests by outcome",
		}, []string{"outcome"}),
		stageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricStageLatency,
			Help:    "Histogram of pipeline stage latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		rankedExperts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricRankedExperts,
			Help:    "Histogram of ranked expert counts per completed search",
			Buckets: []float64{0, 1, 5, 10, 20, 50, 100, 250},
		}),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.outcomes,
		m.stageLatency,
		m.rankedExperts,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveOutcome increments the request counter for an outcome label.
func (m *Metrics) ObserveOutcome(outcome string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(outcome).Inc()
}

// ObserveStage records one stage latency sample.
func (m *Metrics) ObserveStage(stage Stage, d time.Duration) {
	if m == nil {
		return
	}
	m.stageLatency.WithLabelValues(string(stage)).Observe(d.Seconds())
}

// ObserveExperts records the pre-limit ranked expert count.
func (m *Metrics) ObserveExperts(n int) {
	if m == nil {
		return
	}
	m.rankedExperts.Observe(float64(n))
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.outcomes,
		m.stageLatency,
		m.rankedExperts,
	}
}
