package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Script execution metrics
	ExecutionsTotal   *prometheus.CounterVec
	ExecutionDuration prometheus.Histogram

	// Remote command metrics
	RemoteCallsTotal   *prometheus.CounterVec
	RemoteCallDuration *prometheus.HistogramVec

	// Instance metrics
	InstancesConnected prometheus.Gauge
	ScansTotal         prometheus.Counter

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector on its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),
		registry:  reg,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cadbridge_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cadbridge_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		ExecutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cadbridge_script_executions_total",
				Help: "Total number of script executions by outcome",
			},
			[]string{"outcome"},
		),
		ExecutionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cadbridge_script_execution_duration_seconds",
				Help:    "Script execution duration in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
		),

		RemoteCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cadbridge_remote_calls_total",
				Help: "Total number of remote API calls by command and status",
			},
			[]string{"command", "status"},
		),
		RemoteCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cadbridge_remote_call_duration_seconds",
				Help:    "Remote API call duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"command"},
		),

		InstancesConnected: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "cadbridge_instances_connected",
				Help: "Number of currently connected application instances",
			},
		),
		ScansTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "cadbridge_instance_scans_total",
				Help: "Total number of port range scans",
			},
		),

		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "cadbridge_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
	}

	go m.updateUptime()

	return m
}

func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records metrics for an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordExecution records a completed script execution
func (m *Metrics) RecordExecution(outcome string, duration time.Duration) {
	m.ExecutionsTotal.WithLabelValues(outcome).Inc()
	m.ExecutionDuration.Observe(duration.Seconds())
}

// RecordRemoteCall records a remote API call
func (m *Metrics) RecordRemoteCall(command, status string, duration time.Duration) {
	m.RemoteCallsTotal.WithLabelValues(command, status).Inc()
	m.RemoteCallDuration.WithLabelValues(command).Observe(duration.Seconds())
}

// SetInstancesConnected updates the connected instance gauge
func (m *Metrics) SetInstancesConnected(n int) {
	m.InstancesConnected.Set(float64(n))
}

// IncScans increments the scan counter
func (m *Metrics) IncScans() {
	m.ScansTotal.Inc()
}

// Handler returns the Prometheus exposition handler for this collector
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
