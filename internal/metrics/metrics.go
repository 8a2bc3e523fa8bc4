// Package metrics exposes pipeline and store counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ArticleDesk/internal/ports"
)

// Metrics owns a private registry. A nil *Metrics is a valid no-op.
type Metrics struct {
	registry *prometheus.Registry

	cycles         *prometheus.CounterVec
	candidates     *prometheus.CounterVec
	itemDuration   prometheus.Histogram
	mirrorFailures *prometheus.CounterVec
}

// New returns nil when disabled so every recording call becomes a no-op.
func New(enabled bool) *Metrics {
	if !enabled {
		return nil
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		cycles: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "articledesk_cycles_total",
			Help: "Connector sync cycles by result",
		}, []string{"connector", "result"}),
		candidates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "articledesk_candidates_total",
			Help: "Candidate links by final outcome",
		}, []string{"connector", "outcome"}),
		itemDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "articledesk_item_duration_seconds",
			Help:    "Time spent scraping and analyzing one candidate",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		mirrorFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "articledesk_mirror_failures_total",
			Help: "Swallowed remote mirror write failures",
		}, []string{"mirror"}),
	}
}

// CycleFinished counts one connector cycle.
func (m *Metrics) CycleFinished(connector, result string) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(connector, result).Inc()
}

// CandidateOutcome counts one processed candidate.
func (m *Metrics) CandidateOutcome(connector string, outcome ports.Outcome) {
	if m == nil {
		return
	}
	m.candidates.WithLabelValues(connector, string(outcome)).Inc()
}

// ItemDuration records how long one candidate took.
func (m *Metrics) ItemDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.itemDuration.Observe(d.Seconds())
}

// MirrorFailed implements store.MirrorObserver.
func (m *Metrics) MirrorFailed(mirror string) {
	if m == nil {
		return
	}
	m.mirrorFailures.WithLabelValues(mirror).Inc()
}

// Handler serves the exposition format; disabled metrics answer 404.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
