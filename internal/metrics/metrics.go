// Package metrics exports Prometheus instrumentation for the key ring
// store: address requests by route, constraint violations, statement
// latency, change notifications and HTTP latency.
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/keyringdb/internal/notify"
)

const namespace = "keyringdb"

// Outcome labels for Request.
const (
	OutcomeOK         = "ok"
	OutcomeConstraint = "constraint"
	OutcomeError      = "error"
)

// Metrics holds the collectors. Create with New.
type Metrics struct {
	requests             *prometheus.CounterVec
	constraintViolations *prometheus.CounterVec
	statementDuration    *prometheus.HistogramVec
	changes              prometheus.Counter
	httpRequestDuration  *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg. Pass a fresh
// prometheus.NewRegistry() in tests; pass nil to use the default registry.
func New(reg *prometheus.Registry) *Metrics {
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if reg != nil {
		registerer, gatherer = reg, reg
	}

	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Address requests by route code, operation and outcome",
			},
			[]string{"route", "op", "outcome"},
		),
		constraintViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "constraint_violations_total",
				Help:      "Writes rejected by a uniqueness or foreign key constraint",
			},
			[]string{"table"},
		),
		statementDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "statement_duration_seconds",
				Help:      "Time spent executing compiled statements",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
			[]string{"op"},
		),
		changes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "changes_notified_total",
				Help:      "Addresses reported to change notifiers",
			},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Time spent generating HTTP responses",
			},
			[]string{"method", "status_code"},
		),
		gatherer: gatherer,
	}

	registerer.MustRegister(
		m.requests,
		m.constraintViolations,
		m.statementDuration,
		m.changes,
		m.httpRequestDuration,
	)
	return m
}

// Request counts one provider operation on a route.
func (m *Metrics) Request(route, op, outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, op, outcome).Inc()
}

// ConstraintViolation counts a rejected write against table.
func (m *Metrics) ConstraintViolation(table string) {
	if m == nil {
		return
	}
	m.constraintViolations.WithLabelValues(table).Inc()
}

// Statement records how long one statement took.
func (m *Metrics) Statement(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.statementDuration.WithLabelValues(op).Observe(d.Seconds())
}

// HTTPRequest records one HTTP response.
func (m *Metrics) HTTPRequest(method string, statusCode int, d time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{"method": method, "status_code": strconv.Itoa(statusCode)}
	m.httpRequestDuration.With(labels).Observe(d.Seconds())
}

// Notifier returns a change notifier that counts notified addresses.
func (m *Metrics) Notifier() notify.Notifier {
	return notify.Func(func(_ context.Context, addresses ...string) {
		if m == nil {
			return
		}
		m.changes.Add(float64(len(addresses)))
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
