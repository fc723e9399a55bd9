package sdk

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusObserver exports SDK activity as Prometheus metrics.
//
// Example:
//
//	observer := sdk.NewPrometheusObserver(prometheus.DefaultRegisterer)
//	config := sdk.DefaultConfig().WithObserver(observer)
type PrometheusObserver struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	retriesTotal    *prometheus.CounterVec
	showsTotal      *prometheus.CounterVec
	bufferLevel     *prometheus.GaugeVec
}

// NewPrometheusObserver creates the collectors and registers them with reg.
// A nil reg leaves the collectors unregistered.
func NewPrometheusObserver(reg prometheus.Registerer) *PrometheusObserver {
	o := &PrometheusObserver{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adsdk_requests_total",
			Help: "Total number of request attempts sent to the ad server",
		}, []string{"path", "result"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "adsdk_request_duration_seconds",
			Help:    "Duration of request attempts in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"path"}),
		retriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adsdk_retries_scheduled_total",
			Help: "Total number of retries scheduled after a failed request",
		}, []string{"path", "reason"}),
		showsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adsdk_show_attempts_total",
			Help: "Total number of ShowAd buffer lookups",
		}, []string{"orientation", "ad_type", "result"}),
		bufferLevel: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "adsdk_buffered_creatives",
			Help: "Number of creatives currently buffered",
		}, []string{"orientation", "ad_type"}),
	}
	if reg != nil {
		reg.MustRegister(o.requestsTotal, o.requestDuration, o.retriesTotal, o.showsTotal, o.bufferLevel)
	}
	return o
}

// OnRequestStart does nothing; attempts are counted when they end.
func (o *PrometheusObserver) OnRequestStart(path string) {}

// OnRequestEnd records the attempt outcome and duration
func (o *PrometheusObserver) OnRequestEnd(path string, duration time.Duration, err error) {
	o.requestsTotal.WithLabelValues(path, resultLabel(err)).Inc()
	o.requestDuration.WithLabelValues(path).Observe(duration.Seconds())
}

// OnRetryScheduled counts scheduled retries by reason
func (o *PrometheusObserver) OnRetryScheduled(path string, attempt int, delay time.Duration, err error) {
	o.retriesTotal.WithLabelValues(path, resultLabel(err)).Inc()
}

// OnAdServed counts buffer hits
func (o *PrometheusObserver) OnAdServed(key Key) {
	o.showsTotal.WithLabelValues(string(key.Orientation), string(key.AdType), "served").Inc()
}

// OnAdMissed counts buffer misses
func (o *PrometheusObserver) OnAdMissed(key Key) {
	o.showsTotal.WithLabelValues(string(key.Orientation), string(key.AdType), "missed").Inc()
}

// OnBufferLevel sets the buffer gauge
func (o *PrometheusObserver) OnBufferLevel(key Key, count int) {
	o.bufferLevel.WithLabelValues(string(key.Orientation), string(key.AdType)).Set(float64(count))
}

func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	var sdkErr *Error
	if errors.As(err, &sdkErr) {
		return sdkErr.Type.String()
	}
	return ErrorTypeNetwork.String()
}
