// Package metrics exposes the Prometheus instrumentation of the analysis pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Analysis outcome label values.
const (
	OutcomeCompleted = "completed"
	OutcomeTimeout   = "timeout"
	OutcomeInvalid   = "invalid"
)

// Source label values.
const (
	SourceGrading      = "grading"
	SourceTransparency = "transparency"
)

// Metrics holds the collectors registered on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Analyses by outcome
	AnalysesTotal *prometheus.CounterVec

	// Wall-clock time of a full analysis
	AnalysisDuration prometheus.Histogram

	// Poll calls issued per grading run
	PollAttempts prometheus.Histogram

	// Source failures by source and error kind
	SourceFailures *prometheus.CounterVec

	InFlight prometheus.Gauge
}

// New creates a Metrics instance with its own registry, including the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		AnalysesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "certscope_analyses_total",
			Help: "Total analyses by outcome",
		}, []string{"outcome"}), // outcome: "completed", "timeout", "invalid"

		AnalysisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "certscope_analysis_duration_seconds",
			Help:    "Duration of a full analysis including both sources",
			Buckets: []float64{1, 5, 10, 20, 30, 45, 60, 90, 120},
		}),

		PollAttempts: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "certscope_grading_poll_attempts",
			Help:    "Number of grading provider calls issued per analysis",
			Buckets: []float64{1, 2, 4, 8, 12, 16, 20, 24},
		}),

		SourceFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "certscope_source_failures_total",
			Help: "Total per-source failures by source and error kind",
		}, []string{"source", "kind"}),

		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "certscope_inflight_analyses",
			Help: "Analyses currently running",
		}),
	}
}

// ObserveAnalysis records the outcome and duration of one analysis.
func (m *Metrics) ObserveAnalysis(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.AnalysesTotal.WithLabelValues(outcome).Inc()
	if outcome != OutcomeInvalid {
		m.AnalysisDuration.Observe(d.Seconds())
	}
}

// ObservePollAttempts records how many poll calls one grading run used.
func (m *Metrics) ObservePollAttempts(n int) {
	if m != nil && n > 0 {
		m.PollAttempts.Observe(float64(n))
	}
}

// IncrementSourceFailure records a failed source.
func (m *Metrics) IncrementSourceFailure(source, kind string) {
	if m != nil {
		m.SourceFailures.WithLabelValues(source, kind).Inc()
	}
}

// TrackInFlight increments the in-flight gauge and returns the matching decrement.
func (m *Metrics) TrackInFlight() func() {
	if m == nil {
		return func() {}
	}
	m.InFlight.Inc()
	return m.InFlight.Dec
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
