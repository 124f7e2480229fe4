package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for transcription requests.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeDiscarded = "discarded"
)

// Metrics owns a private registry so tests and multiple servers do not collide.
// A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	validations     *prometheus.CounterVec
	requests        *prometheus.CounterVec
	requestDuration prometheus.Histogram
	activeSessions  prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "transcriber",
			Name:      "intake_validations_total",
			Help:      "Intake validation results by outcome.",
		}, []string{"result"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "transcriber",
			Name:      "requests_total",
			Help:      "Transcription requests by outcome.",
		}, []string{"outcome"}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "transcriber",
			Name:      "request_duration_seconds",
			Help:      "Latency of transcription backend calls.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "transcriber",
			Name:      "active_sessions",
			Help:      "Number of live upload sessions.",
		}),
	}

	m.registry.MustRegister(
		m.validations,
		m.requests,
		m.requestDuration,
		m.activeSessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveValidation records an intake result: "accepted" or a rejection reason.
func (m *Metrics) ObserveValidation(result string) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(result).Inc()
}

// ObserveTranscription records the outcome and latency of one backend call.
func (m *Metrics) ObserveTranscription(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
	m.requestDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
