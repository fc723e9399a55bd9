package sdk

import (
	"sync"
	"time"
)

// Observer provides hooks for monitoring SDK internals that never surface as
// consumer events: requests, internal retries and buffer levels.
//
// Observer methods are called synchronously and should be fast and non-blocking.
//
// Example implementation:
//
//	type LogObserver struct{}
//
//	func (LogObserver) OnRetryScheduled(path string, attempt int, delay time.Duration, err error) {
//	    log.Printf("retry #%d of %s in %v: %v", attempt, path, delay, err)
//	}
//	// ... remaining methods
//
//	config := sdk.DefaultConfig().WithObserver(LogObserver{})
type Observer interface {
	// OnRequestStart is called when a request attempt is sent.
	OnRequestStart(path string)

	// OnRequestEnd is called when a request attempt completes.
	// err is the transport failure or the error envelope, nil on success.
	OnRequestEnd(path string, duration time.Duration, err error)

	// OnRetryScheduled is called when a failed request is queued for retry.
	OnRetryScheduled(path string, attempt int, delay time.Duration, err error)

	// OnAdServed is called when ShowAd pops a creative from the buffer.
	OnAdServed(key Key)

	// OnAdMissed is called when ShowAd finds the buffer empty.
	OnAdMissed(key Key)

	// OnBufferLevel reports the number of buffered creatives for a key after
	// the buffer changed.
	OnBufferLevel(key Key, count int)
}

// NoopObserver is a no-op implementation of Observer that does nothing.
// This is the default observer used when none is configured.
type NoopObserver struct{}

// OnRequestStart does nothing
func (n *NoopObserver) OnRequestStart(path string) {}

// OnRequestEnd does nothing
func (n *NoopObserver) OnRequestEnd(path string, duration time.Duration, err error) {}

// OnRetryScheduled does nothing
func (n *NoopObserver) OnRetryScheduled(path string, attempt int, delay time.Duration, err error) {
}

// OnAdServed does nothing
func (n *NoopObserver) OnAdServed(key Key) {}

// OnAdMissed does nothing
func (n *NoopObserver) OnAdMissed(key Key) {}

// OnBufferLevel does nothing
func (n *NoopObserver) OnBufferLevel(key Key, count int) {}

// MetricsCollector is a simple in-memory metrics implementation, intended for
// debugging and tests. For production, use PrometheusObserver.
//
// Example:
//
//	metrics := sdk.NewMetricsCollector()
//	config := sdk.DefaultConfig().WithObserver(metrics)
//
//	snapshot := metrics.GetMetrics()
//	fmt.Printf("Fill rate: %.2f\n", snapshot["fill_rate"].(float64))
type MetricsCollector struct {
	mu           sync.RWMutex
	requestCount map[string]int64
	latencies    map[string][]time.Duration
	errorCount   map[string]int64
	retryCount   map[string]int64
	served       int64
	missed       int64
	levels       map[Key]int
}

// NewMetricsCollector creates a new metrics collector. It is safe for concurrent use.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		requestCount: make(map[string]int64),
		latencies:    make(map[string][]time.Duration),
		errorCount:   make(map[string]int64),
		retryCount:   make(map[string]int64),
		levels:       make(map[Key]int),
	}
}

// OnRequestStart increments request count
func (m *MetricsCollector) OnRequestStart(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[path]++
}

// OnRequestEnd records request duration and errors
func (m *MetricsCollector) OnRequestEnd(path string, duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies[path] = append(m.latencies[path], duration)
	if err != nil {
		m.errorCount[path]++
	}
}

// OnRetryScheduled increments retry count
func (m *MetricsCollector) OnRetryScheduled(path string, attempt int, delay time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retryCount[path]++
}

// OnAdServed increments the served count
func (m *MetricsCollector) OnAdServed(key Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.served++
}

// OnAdMissed increments the missed count
func (m *MetricsCollector) OnAdMissed(key Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.missed++
}

// OnBufferLevel records the latest level for the key
func (m *MetricsCollector) OnBufferLevel(key Key, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels[key] = count
}

// GetMetrics returns a snapshot of current metrics.
//
// The metrics include:
//   - "requests": map of path to request attempts
//   - "latencies": map of path to latency measurements
//   - "errors": map of path to failed attempts
//   - "retries": map of path to scheduled retries
//   - "served", "missed": ShowAd buffer hits and misses
//   - "fill_rate": served / (served + missed), 0 when nothing was requested
//   - "buffer_levels": map of "orientation/type" to the last reported level
func (m *MetricsCollector) GetMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	requestsCopy := make(map[string]int64, len(m.requestCount))
	for k, v := range m.requestCount {
		requestsCopy[k] = v
	}

	latenciesCopy := make(map[string][]time.Duration, len(m.latencies))
	for k, v := range m.latencies {
		latenciesCopy[k] = append([]time.Duration(nil), v...)
	}

	errorsCopy := make(map[string]int64, len(m.errorCount))
	for k, v := range m.errorCount {
		errorsCopy[k] = v
	}

	retriesCopy := make(map[string]int64, len(m.retryCount))
	for k, v := range m.retryCount {
		retriesCopy[k] = v
	}

	levelsCopy := make(map[string]int, len(m.levels))
	for k, v := range m.levels {
		levelsCopy[k.String()] = v
	}

	fillRate := float64(0)
	if total := m.served + m.missed; total > 0 {
		fillRate = float64(m.served) / float64(total)
	}

	return map[string]interface{}{
		"requests":      requestsCopy,
		"latencies":     latenciesCopy,
		"errors":        errorsCopy,
		"retries":       retriesCopy,
		"served":        m.served,
		"missed":        m.missed,
		"fill_rate":     fillRate,
		"buffer_levels": levelsCopy,
	}
}

// CompositeObserver allows multiple observers to be combined into one.
// All observer methods are called on each child observer in order; a
// panicking observer does not prevent the others from running.
//
// Example:
//
//	observer := sdk.NewCompositeObserver(
//	    sdk.NewMetricsCollector(),
//	    sdk.NewPrometheusObserver(prometheus.DefaultRegisterer),
//	)
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an observer that delegates to multiple observers.
func NewCompositeObserver(observers ...Observer) Observer {
	return &CompositeObserver{observers: observers}
}

func (c *CompositeObserver) each(fn func(Observer)) {
	for _, obs := range c.observers {
		func() {
			defer func() {
				_ = recover()
			}()
			fn(obs)
		}()
	}
}

// OnRequestStart notifies all observers of request start
func (c *CompositeObserver) OnRequestStart(path string) {
	c.each(func(o Observer) { o.OnRequestStart(path) })
}

// OnRequestEnd notifies all observers of request completion
func (c *CompositeObserver) OnRequestEnd(path string, duration time.Duration, err error) {
	c.each(func(o Observer) { o.OnRequestEnd(path, duration, err) })
}

// OnRetryScheduled notifies all observers
func (c *CompositeObserver) OnRetryScheduled(path string, attempt int, delay time.Duration, err error) {
	c.each(func(o Observer) { o.OnRetryScheduled(path, attempt, delay, err) })
}

// OnAdServed notifies all observers
func (c *CompositeObserver) OnAdServed(key Key) {
	c.each(func(o Observer) { o.OnAdServed(key) })
}

// OnAdMissed notifies all observers
func (c *CompositeObserver) OnAdMissed(key Key) {
	c.each(func(o Observer) { o.OnAdMissed(key) })
}

// OnBufferLevel notifies all observers
func (c *CompositeObserver) OnBufferLevel(key Key, count int) {
	c.each(func(o Observer) { o.OnBufferLevel(key, count) })
}
