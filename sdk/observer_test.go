package sdk

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCollector(t *testing.T) {
	m := NewMetricsCollector()
	banner := Key{Orientation: OrientationPortrait, AdType: AdTypeBanner}

	m.OnRequestStart(pathSession)
	m.OnRequestEnd(pathSession, 20*time.Millisecond, nil)
	m.OnRequestStart(pathContent)
	m.OnRequestEnd(pathContent, 40*time.Millisecond, errors.New("refused"))
	m.OnRetryScheduled(pathContent, 1, 5*time.Second, errors.New("refused"))
	m.OnAdServed(banner)
	m.OnAdServed(banner)
	m.OnAdServed(banner)
	m.OnAdMissed(banner)
	m.OnBufferLevel(banner, 3)
	m.OnBufferLevel(banner, 1)

	snapshot := m.GetMetrics()
	assert.Equal(t, map[string]int64{pathSession: 1, pathContent: 1}, snapshot["requests"])
	assert.Equal(t, map[string]int64{pathContent: 1}, snapshot["errors"])
	assert.Equal(t, map[string]int64{pathContent: 1}, snapshot["retries"])
	assert.Equal(t, int64(3), snapshot["served"])
	assert.Equal(t, int64(1), snapshot["missed"])
	assert.InDelta(t, 0.75, snapshot["fill_rate"].(float64), 0.0001)
	assert.Equal(t, map[string]int{"portrait/banner": 1}, snapshot["buffer_levels"])

	latencies := snapshot["latencies"].(map[string][]time.Duration)
	assert.Equal(t, []time.Duration{40 * time.Millisecond}, latencies[pathContent])
}

func TestMetricsCollector_SnapshotIsACopy(t *testing.T) {
	m := NewMetricsCollector()
	m.OnRequestStart(pathSession)

	snapshot := m.GetMetrics()
	m.OnRequestStart(pathSession)

	assert.Equal(t, int64(1), snapshot["requests"].(map[string]int64)[pathSession])
	assert.Equal(t, float64(0), snapshot["fill_rate"])
}

type panickingObserver struct{ NoopObserver }

func (panickingObserver) OnAdServed(Key) { panic("observer bug") }

func TestCompositeObserver(t *testing.T) {
	first := NewMetricsCollector()
	second := NewMetricsCollector()
	obs := NewCompositeObserver(first, &panickingObserver{}, second)

	key := Key{Orientation: OrientationLandscape, AdType: AdTypeInterstitial}
	require.NotPanics(t, func() { obs.OnAdServed(key) })
	obs.OnRequestStart(pathContent)

	for _, m := range []*MetricsCollector{first, second} {
		snapshot := m.GetMetrics()
		assert.Equal(t, int64(1), snapshot["served"])
		assert.Equal(t, int64(1), snapshot["requests"].(map[string]int64)[pathContent])
	}
}

func TestObserver_WiredIntoClient(t *testing.T) {
	metrics := NewMetricsCollector()
	h := newHarness(t, func(c *Config) { c.Observer = metrics })
	h.transport.handle(pathContent, contentFor(h.clock, time.Hour))

	h.init(AdTypeBanner)
	require.True(t, h.client.ShowAd(AdTypeBanner, nil))

	snapshot := metrics.GetMetrics()
	requests := snapshot["requests"].(map[string]int64)
	assert.Equal(t, int64(1), requests[pathSession])
	assert.GreaterOrEqual(t, requests[pathContent], int64(1))
	assert.Equal(t, int64(1), snapshot["served"])
}
