package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ServerMetrics are the Prometheus collectors of the sandbox ad server
type ServerMetrics struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	sessionsCreated     prometheus.Counter
	creativesServed     *prometheus.CounterVec
	rejectionsTotal     *prometheus.CounterVec
	activeSessions      prometheus.Gauge
	serviceUp           prometheus.Gauge
}

// NewServerMetrics creates the collectors and registers them with reg
func NewServerMetrics(reg prometheus.Registerer) *ServerMetrics {
	factory := promauto.With(reg)

	m := &ServerMetrics{
		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status"}),

		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),

		sessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "adserver_sessions_created_total",
			Help: "Total number of sessions created",
		}),

		creativesServed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "adserver_creatives_served_total",
			Help: "Total number of creatives returned by the content endpoint",
		}, []string{"orientation", "ad_type"}),

		rejectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "adserver_rejections_total",
			Help: "Total number of requests answered with an error envelope",
		}, []string{"endpoint", "code"}),

		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "adserver_active_sessions",
			Help: "Number of unexpired sessions known to the store",
		}),

		serviceUp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "service_up",
			Help: "Whether the service is up (1) or down (0)",
		}),
	}
	m.serviceUp.Set(1)
	return m
}

// RecordHTTPRequest records an HTTP request
func (m *ServerMetrics) RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordSessionCreated counts a new session
func (m *ServerMetrics) RecordSessionCreated() {
	m.sessionsCreated.Inc()
}

// RecordCreativeServed counts one creative handed out
func (m *ServerMetrics) RecordCreativeServed(orientation, adType string) {
	m.creativesServed.WithLabelValues(orientation, adType).Inc()
}

// RecordRejection counts an error envelope answer
func (m *ServerMetrics) RecordRejection(endpoint, code string) {
	m.rejectionsTotal.WithLabelValues(endpoint, code).Inc()
}

// UpdateActiveSessions sets the active sessions gauge
func (m *ServerMetrics) UpdateActiveSessions(count int) {
	m.activeSessions.Set(float64(count))
}
