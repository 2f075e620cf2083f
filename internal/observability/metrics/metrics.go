// Package metrics holds the Prometheus collectors of the hospital-hub
// binaries.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abhishek2k21/purpletide-hospital-hub/pkg/circuitbreaker"
)

type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	SignIns      *prometheus.CounterVec

	EventsPublished   *prometheus.CounterVec
	PublishErrors     *prometheus.CounterVec
	EventsDeadLetter  prometheus.Counter
	OutboxPending     prometheus.Gauge
	EventsConsumed    *prometheus.CounterVec
	ActivityProjected prometheus.Counter
	LowStockAlerts    *prometheus.CounterVec

	CircuitBreakerState *prometheus.GaugeVec
	WorkerQueueDepth    prometheus.Gauge
}

// New creates the collectors on a fresh registry, alongside the Go runtime
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hospital_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hospital_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"method", "route"}),
		SignIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hospital_sign_ins_total",
			Help: "Sign-in attempts by directory and outcome",
		}, []string{"source", "outcome"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hospital_events_published_total",
			Help: "Domain events relayed from the outbox, by type",
		}, []string{"type"}),
		PublishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hospital_publish_errors_total",
			Help: "Failed produce attempts by topic",
		}, []string{"topic"}),
		EventsDeadLetter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hospital_events_dead_lettered_total",
			Help: "Outbox entries moved to the dead-letter topic",
		}),
		OutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hospital_outbox_pending_entries",
			Help: "Outbox entries waiting to be published",
		}),
		EventsConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hospital_events_consumed_total",
			Help: "Domain events consumed by the activity service, by type and outcome",
		}, []string{"type", "outcome"}),
		ActivityProjected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hospital_activity_entries_total",
			Help: "Entries written to the activity log",
		}),
		LowStockAlerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hospital_low_stock_alerts_total",
			Help: "Low-stock alerts sent to supplier webhooks",
		}, []string{"supplier", "outcome"}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hospital_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
		WorkerQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hospital_worker_queue_depth",
			Help: "Tasks waiting in the activity worker pool",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests,
		m.HTTPDuration,
		m.SignIns,
		m.EventsPublished,
		m.PublishErrors,
		m.EventsDeadLetter,
		m.OutboxPending,
		m.EventsConsumed,
		m.ActivityProjected,
		m.LowStockAlerts,
		m.CircuitBreakerState,
		m.WorkerQueueDepth,
	)
	return m
}

// Handler serves this registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveBreakers copies breaker states into CircuitBreakerState.
func (m *Metrics) ObserveBreakers(health []circuitbreaker.HealthStatus) {
	for _, h := range health {
		var v float64
		switch h.State {
		case circuitbreaker.StateOpen:
			v = 1
		case circuitbreaker.StateHalfOpen:
			v = 2
		}
		m.CircuitBreakerState.WithLabelValues(h.Name).Set(v)
	}
}
