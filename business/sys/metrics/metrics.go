// Package metrics holds the Prometheus collectors for the tip jar service.
package metrics

import (
	"strconv"
	"time"

	"github.com/ardanlabs/tipjar/foundation/tipjar/history"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the service. It is passed to
// the components that need to record metrics.
type Metrics struct {
	factory promauto.Factory

	// HTTP Metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	// Websocket Metrics
	wsConnections prometheus.Gauge

	// Ledger Metrics
	submissionsTotal  *prometheus.CounterVec
	transactionsFinal *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		factory: factory,

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tipjar_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tipjar_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),

		wsConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tipjar_websocket_connections",
				Help: "Number of open event websocket connections",
			},
		),

		submissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tipjar_submissions_total",
				Help: "Total number of tip and withdraw submissions by outcome",
			},
			[]string{"kind", "outcome"},
		),
		transactionsFinal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tipjar_transactions_final_total",
				Help: "Total number of tracked transactions that reached a final phase",
			},
			[]string{"phase"},
		),
	}
}

// RecordHTTPRequest records the outcome and duration of an HTTP request.
func (m *Metrics) RecordHTTPRequest(handler string, method string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	m.httpRequestsTotal.WithLabelValues(handler, method, code).Inc()
	m.httpRequestDuration.WithLabelValues(handler, method, code).Observe(duration.Seconds())
}

// WebsocketOpened tracks a new websocket connection.
func (m *Metrics) WebsocketOpened() {
	m.wsConnections.Inc()
}

// WebsocketClosed tracks a closed websocket connection.
func (m *Metrics) WebsocketClosed() {
	m.wsConnections.Dec()
}

// RecordSubmission records the outcome of a tip or withdraw submission.
func (m *Metrics) RecordSubmission(kind string, outcome string) {
	m.submissionsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordFinal records a tracked transaction reaching a final phase.
func (m *Metrics) RecordFinal(phase string) {
	m.transactionsFinal.WithLabelValues(phase).Inc()
}

// RegisterHistory exports the refresh counters of the history synchronizer.
func (m *Metrics) RegisterHistory(stats func() history.Stats) {
	m.factory.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "tipjar_history_refreshes_applied_total",
			Help: "Total number of history refreshes that replaced the display list",
		},
		func() float64 { return float64(stats().Applied) },
	)
	m.factory.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "tipjar_history_refreshes_stale_total",
			Help: "Total number of history refreshes discarded for a later one",
		},
		func() float64 { return float64(stats().Stale) },
	)
	m.factory.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "tipjar_history_refreshes_failed_total",
			Help: "Total number of history refreshes whose fetch failed",
		},
		func() float64 { return float64(stats().Failed) },
	)
}
