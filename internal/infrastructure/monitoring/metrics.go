package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics exported by the bridge.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Install/uninstall submissions
	InstallSubmissions *prometheus.CounterVec

	// Event relay
	EventsRelayed  *prometheus.CounterVec
	EventsDropped  prometheus.Counter
	RelayQueueSize prometheus.Gauge

	// Icon cache
	IconWrites    prometheus.Counter
	IconEvictions prometheus.Counter

	// WebSocket subscribers
	WSSubscribers prometheus.Gauge

	startTime time.Time
}

// NewMetrics creates a metrics collector registered with a fresh registry.
// The registry is returned alongside so the server can mount its handler.
func NewMetrics() (*Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bridge_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		InstallSubmissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_install_submissions_total",
				Help: "Install/uninstall session submissions by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		EventsRelayed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_package_events_relayed_total",
				Help: "Package lifecycle events processed by the relay",
			},
			[]string{"kind"},
		),
		EventsDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bridge_package_events_dropped_total",
				Help: "Package lifecycle events dropped due to a full relay queue",
			},
		),
		RelayQueueSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bridge_relay_queue_depth",
				Help: "Current depth of the relay event queue",
			},
		),
		IconWrites: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bridge_icon_writes_total",
				Help: "Icon files written to the cache",
			},
		),
		IconEvictions: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bridge_icon_evictions_total",
				Help: "Icon files removed from the cache",
			},
		),
		WSSubscribers: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bridge_ws_subscribers",
				Help: "Connected websocket event subscribers",
			},
		),
	}

	return m, reg
}

// RecordHTTPRequest records one completed HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordSubmission records one install or uninstall submission outcome.
func (m *Metrics) RecordSubmission(operation string, status int) {
	outcome := "submitted"
	if status != 0 {
		outcome = "failed"
	}
	m.InstallSubmissions.WithLabelValues(operation, outcome).Inc()
}

// Uptime returns seconds since the collector was created.
func (m *Metrics) Uptime() float64 {
	return time.Since(m.startTime).Seconds()
}
