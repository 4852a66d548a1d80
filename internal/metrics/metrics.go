// Package metrics exports poll-loop observations to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/steadyboard/internal/ir"
)

const namespace = "steadyboard"

// Metrics implements engine.Metrics on a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	rejections    *prometheus.CounterVec
	failures      *prometheus.CounterVec
	changes       *prometheus.CounterVec
	vetoes        *prometheus.CounterVec
	confirmations *prometheus.CounterVec
	renderFails   *prometheus.CounterVec
	fetchRetries  *prometheus.CounterVec
	ticksSkipped  prometheus.Counter

	committedSeq prometheus.Gauge
	participants prometheus.Gauge
	pending      prometheus.Gauge
}

// New creates Metrics registered on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		// Labels: outcome (committed, unchanged, pending, rejected, failed)
		cycles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Poll cycles by outcome",
		}, []string{"outcome"}),

		cycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Fetch-to-commit latency of one poll cycle",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),

		// Labels: reason (min_population, name_set, coherence)
		rejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_rejections_total",
			Help:      "Candidates refused by the consistency guard",
		}, []string{"reason"}),

		// Labels: reason (transport, shape, cancelled, error)
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycle_failures_total",
			Help:      "Cycles that produced no candidate",
		}, []string{"reason"}),

		// Labels: kind (added, updated, removed, event)
		changes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "changes_committed_total",
			Help:      "Committed transitions by kind",
		}, []string{"kind"}),

		// Labels: field (progress, gross)
		vetoes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monotonic_vetoes_total",
			Help:      "Transitions refused by the monotonic rules",
		}, []string{"field"}),

		// Labels: result (agreed, disagreed)
		confirmations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confirmations_total",
			Help:      "Double-read confirmation checks",
		}, []string{"result"}),

		renderFails: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_failures_total",
			Help:      "Render sink errors",
		}, []string{"sink"}),

		fetchRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_retries_total",
			Help:      "Fetch attempts retried after a transport error",
		}, []string{"source"}),

		ticksSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_skipped_total",
			Help:      "Poll ticks skipped because a cycle was still in flight",
		}),

		committedSeq: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "committed_seq",
			Help:      "Sequence number of the last cycle",
		}),

		participants: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "candidate_participants",
			Help:      "Participants in the last admitted candidate",
		}),

		pending: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_proposals",
			Help:      "Proposals waiting for more observations",
		}),
	}
}

// CycleCompleted implements engine.Metrics.
func (m *Metrics) CycleCompleted(c ir.Cycle, elapsed time.Duration) {
	m.cycles.WithLabelValues(string(c.Outcome)).Inc()
	m.cycleDuration.Observe(elapsed.Seconds())
	m.committedSeq.Set(float64(c.Seq))

	switch c.Outcome {
	case ir.OutcomeRejected:
		m.rejections.WithLabelValues(c.Reason).Inc()
		return
	case ir.OutcomeFailed:
		m.failures.WithLabelValues(c.Reason).Inc()
		return
	}

	m.participants.Set(float64(c.Participants))
	m.pending.Set(float64(c.Pending))
	for _, ch := range c.Changes {
		m.changes.WithLabelValues(string(ch.Kind)).Inc()
	}
	for _, v := range c.Vetoes {
		m.vetoes.WithLabelValues(v.Field).Inc()
	}
}

// TickSkipped implements engine.Metrics.
func (m *Metrics) TickSkipped() {
	m.ticksSkipped.Inc()
}

// ConfirmationChecked implements engine.Metrics.
func (m *Metrics) ConfirmationChecked(agreed bool) {
	result := "disagreed"
	if agreed {
		result = "agreed"
	}
	m.confirmations.WithLabelValues(result).Inc()
}

// RenderFailed implements engine.Metrics.
func (m *Metrics) RenderFailed(sink string) {
	m.renderFails.WithLabelValues(sink).Inc()
}

// FetchRetried counts a retried fetch. Its signature matches
// source.WithRetryObserver.
func (m *Metrics) FetchRetried(source string, _ int, _ error) {
	m.fetchRetries.WithLabelValues(source).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
