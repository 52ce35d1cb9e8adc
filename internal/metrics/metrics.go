package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	Summarizations       *prometheus.CounterVec
	SummarizationLatency *prometheus.HistogramVec
	Exports              *prometheus.CounterVec
	ExportLatency        prometheus.Histogram
	HTTPRequests         *prometheus.CounterVec
}

// Registry is where Default registers; the web server exposes it on /metrics
var Registry = prometheus.NewRegistry()

// Default is the process-wide metrics set
var Default = New("clinsum", Registry)

// New creates and registers all application metrics on reg
func New(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Summarizations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summarizations_total",
			Help:      "Summarization attempts by provider and outcome",
		}, []string{"provider", "outcome"}),
		SummarizationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "summarization_duration_seconds",
			Help:      "Time spent waiting for the summarization backend",
			Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 20, 40, 80},
		}, []string{"provider"}),
		Exports: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "PDF export attempts by outcome",
		}, []string{"outcome"}),
		ExportLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "export_duration_seconds",
			Help:      "Time spent rasterizing and assembling a PDF export",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"route", "code"}),
	}
}

// ObserveSummarization records one summarization attempt
func (m *Metrics) ObserveSummarization(provider, outcome string, took time.Duration) {
	m.Summarizations.WithLabelValues(provider, outcome).Inc()
	m.SummarizationLatency.WithLabelValues(provider).Observe(took.Seconds())
}

// ObserveExport records one export attempt
func (m *Metrics) ObserveExport(outcome string, took time.Duration) {
	m.Exports.WithLabelValues(outcome).Inc()
	m.ExportLatency.Observe(took.Seconds())
}
