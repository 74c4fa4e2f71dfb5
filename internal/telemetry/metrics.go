package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus collector the server exports. Each instance
// has its own registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
	CacheLookups     *prometheus.CounterVec
	Dispatches       *prometheus.CounterVec
	EmailFailures    prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tubeclone_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds, by route, method and status.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method", "status"},
		),
		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tubeclone_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served.",
		}),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tubeclone_catalog_cache_lookups_total",
				Help: "Catalog cache lookups, by result.",
			},
			[]string{"result"},
		),
		Dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tubeclone_capability_dispatches_total",
				Help: "Requests dispatched to a capability backend, by sign-in mode.",
			},
			[]string{"mode"},
		),
		EmailFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tubeclone_email_failures_total",
			Help: "Notification emails that could not be delivered.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestDuration,
		m.RequestsInFlight,
		m.CacheLookups,
		m.Dispatches,
		m.EmailFailures,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) CacheHit()  { m.CacheLookups.WithLabelValues("hit").Inc() }
func (m *Metrics) CacheMiss() { m.CacheLookups.WithLabelValues("miss").Inc() }

func (m *Metrics) Dispatched(mode string) { m.Dispatches.WithLabelValues(mode).Inc() }

func (m *Metrics) EmailFailed() { m.EmailFailures.Inc() }
