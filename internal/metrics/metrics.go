// Package metrics exposes Prometheus collectors for the chat backend.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "arc"

// Metrics owns a private registry so tests and multiple servers don't collide.
type Metrics struct {
	registry *prometheus.Registry

	providerAttempts *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	fallbacks        prometheus.Counter
	httpRequests     *prometheus.CounterVec
	unlocks          *prometheus.CounterVec
	persistErrors    *prometheus.CounterVec
	speech           *prometheus.CounterVec
}

// New creates and registers every collector. withRuntime adds Go and process collectors.
func New(withRuntime bool) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		providerAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_attempts_total",
				Help:      "Provider attempts by outcome",
			},
			[]string{"provider", "outcome"}, // outcome: ok, error, skipped
		),
		providerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_request_duration_seconds",
				Help:      "Duration of provider calls in seconds",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"provider"},
		),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_replies_total",
			Help:      "Queries answered with the fallback literal",
		}),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route pattern and status code",
			},
			[]string{"route", "method", "code"},
		),
		unlocks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "unlock_attempts_total",
				Help:      "Access code attempts by result",
			},
			[]string{"result"}, // granted, denied, limited
		),
		persistErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "persistence_errors_total",
				Help:      "Best-effort persistence failures",
			},
			[]string{"op"}, // load, save, fact, alert
		),
		speech: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "speech_requests_total",
				Help:      "Speech synthesis requests by result",
			},
			[]string{"result"}, // ok, offline
		),
	}

	m.registry.MustRegister(
		m.providerAttempts,
		m.providerDuration,
		m.fallbacks,
		m.httpRequests,
		m.unlocks,
		m.persistErrors,
		m.speech,
	)
	if withRuntime {
		m.registry.MustRegister(collectors.NewGoCollector())
		m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveAttempt records one provider attempt. Skipped attempts carry no duration.
func (m *Metrics) ObserveAttempt(provider, outcome string, elapsed time.Duration) {
	m.providerAttempts.WithLabelValues(provider, outcome).Inc()
	if elapsed > 0 {
		m.providerDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
	}
}

// IncFallback counts a query that no provider answered.
func (m *Metrics) IncFallback() {
	m.fallbacks.Inc()
}

// ObserveRequest counts one finished HTTP request.
func (m *Metrics) ObserveRequest(route, method string, code int) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
}

// IncUnlock counts an access code attempt.
func (m *Metrics) IncUnlock(result string) {
	m.unlocks.WithLabelValues(result).Inc()
}

// IncPersistError counts a swallowed storage failure.
func (m *Metrics) IncPersistError(op string) {
	m.persistErrors.WithLabelValues(op).Inc()
}

// IncSpeech counts a speech request.
func (m *Metrics) IncSpeech(result string) {
	m.speech.WithLabelValues(result).Inc()
}
