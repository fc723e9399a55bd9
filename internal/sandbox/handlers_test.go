package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birbparty/birb-ads/internal/clock/clocktest"
	"github.com/birbparty/birb-ads/internal/telemetry"
)

type testServer struct {
	app     *fiber.App
	clock   *clocktest.Fake
	store   *MemoryStore
	metrics *telemetry.ServerMetrics
	reg     *prometheus.Registry
}

func newTestServer(t *testing.T, configure ...func(*Config)) *testServer {
	t.Helper()

	cfg := DefaultConfig()
	cfg.AppKeys = "demo-app-key, other-key"
	for _, fn := range configure {
		fn(cfg)
	}
	require.NoError(t, cfg.Validate())

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	fc := clocktest.NewFake(testStart)
	store := NewMemoryStore(fc)
	t.Cleanup(func() { _ = store.Close() })

	reg := prometheus.NewRegistry()
	metrics := telemetry.NewServerMetrics(reg)
	handlers := NewHandlers(cfg, store, metrics, logger, fc)

	return &testServer{
		app:     NewApp(cfg, handlers, metrics, reg),
		clock:   fc,
		store:   store,
		metrics: metrics,
		reg:     reg,
	}
}

// counterValue reads a counter from the registry, 0 when the series does not exist
func counterValue(t *testing.T, g prometheus.Gatherer, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := g.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func (s *testServer) rejections(t *testing.T, endpoint, code string) float64 {
	return rejections(t, s.reg, endpoint, code)
}

func rejections(t *testing.T, g prometheus.Gatherer, endpoint, code string) float64 {
	return counterValue(t, g, "adserver_rejections_total", map[string]string{"endpoint": endpoint, "code": code})
}

func (s *testServer) post(t *testing.T, path, token string, body interface{}) (int, []byte) {
	t.Helper()

	var payload []byte
	switch b := body.(type) {
	case string:
		payload = []byte(b)
	default:
		var err error
		payload, err = json.Marshal(b)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func (s *testServer) session(t *testing.T) string {
	t.Helper()
	status, body := s.post(t, endpointSession, "", validSessionRequest())
	require.Equal(t, http.StatusOK, status, string(body))

	var resp SessionResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp.SessionToken
}

func validSessionRequest() SessionRequest {
	return SessionRequest{
		AppKey:       "demo-app-key",
		AppID:        "com.example.game",
		Width:        1080,
		Height:       1920,
		Density:      2,
		Language:     "en",
		Country:      "US",
		Orientations: []string{orientationPortrait, orientationLandscape},
	}
}

func bannerRequest() ContentRequest {
	return ContentRequest{Combinations: map[string][]string{orientationPortrait: {adTypeBanner}}}
}

func decodeEnvelope(t *testing.T, body []byte) ErrorEnvelope {
	t.Helper()
	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(body, &env))
	return env
}

func TestCreateSession(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		s := newTestServer(t)

		status, body := s.post(t, endpointSession, "", validSessionRequest())
		require.Equal(t, http.StatusOK, status)

		var resp SessionResponse
		require.NoError(t, json.Unmarshal(body, &resp))
		_, err := uuid.Parse(resp.SessionToken)
		assert.NoError(t, err)
		assert.Equal(t, 2, resp.BufferLimits.Min)
		assert.Equal(t, float64(30), resp.RotationInterval)

		stored, err := s.store.GetSession(context.Background(), resp.SessionToken)
		require.NoError(t, err)
		assert.Equal(t, "com.example.game", stored.AppID)
	})

	t.Run("second app key is accepted", func(t *testing.T) {
		s := newTestServer(t)
		req := validSessionRequest()
		req.AppKey = "other-key"

		status, _ := s.post(t, endpointSession, "", req)
		assert.Equal(t, http.StatusOK, status)
	})

	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
		wantCode   string
	}{
		{"unknown app key", func() SessionRequest { r := validSessionRequest(); r.AppKey = "nope"; return r }(), http.StatusUnauthorized, CodeUnauthorized},
		{"malformed json", `{"app_key":`, http.StatusBadRequest, CodeInvalidData},
		{"missing screen size", func() SessionRequest { r := validSessionRequest(); r.Width = 0; return r }(), http.StatusBadRequest, CodeInvalidData},
		{"no orientations", func() SessionRequest { r := validSessionRequest(); r.Orientations = nil; return r }(), http.StatusBadRequest, CodeInvalidData},
		{"unknown orientation", func() SessionRequest { r := validSessionRequest(); r.Orientations = []string{"diagonal"}; return r }(), http.StatusBadRequest, CodeInvalidData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			status, body := s.post(t, endpointSession, "", tt.body)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, decodeEnvelope(t, body).Error)
			assert.Equal(t, float64(1), s.rejections(t, endpointSession, tt.wantCode))
		})
	}
}

func TestGetContent(t *testing.T) {
	t.Run("returns creatives per requested pair", func(t *testing.T) {
		s := newTestServer(t)
		token := s.session(t)

		status, body := s.post(t, endpointContent, token, ContentRequest{
			Combinations: map[string][]string{
				orientationPortrait:  {adTypeInterstitial, adTypeBanner},
				orientationLandscape: {adTypeBanner},
			},
			ExtraParameters: map[string][]string{"level": {"7"}},
		})
		require.Equal(t, http.StatusOK, status, string(body))

		var resp ContentResponse
		require.NoError(t, json.Unmarshal(body, &resp))
		require.Len(t, resp.Result, 6)

		first := resp.Result[0]
		assert.Equal(t, AdDescriptor{Orientation: orientationLandscape, Type: adTypeBanner, Width: 728, Height: 90}, first.Ad)
		assert.True(t, testStart.Add(10*time.Minute).Equal(first.ExpiresAt))

		last := resp.Result[5]
		assert.Equal(t, AdDescriptor{Orientation: orientationPortrait, Type: adTypeInterstitial, Width: 1080, Height: 1920}, last.Ad)

		u, err := url.Parse(last.URL)
		require.NoError(t, err)
		assert.Equal(t, "7", u.Query().Get("level"))
		assert.Equal(t, "cdn.birbads.dev", u.Host)
	})

	t.Run("unauthorized", func(t *testing.T) {
		s := newTestServer(t)
		token := s.session(t)

		status, body := s.post(t, endpointContent, "", bannerRequest())
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, CodeUnauthorized, decodeEnvelope(t, body).Error)

		_, body = s.post(t, endpointContent, uuid.NewString(), bannerRequest())
		assert.Equal(t, CodeUnauthorized, decodeEnvelope(t, body).Error)

		s.clock.Advance(31 * time.Minute)
		_, body = s.post(t, endpointContent, token, bannerRequest())
		assert.Equal(t, CodeUnauthorized, decodeEnvelope(t, body).Error, "expired session")
	})

	invalid := []struct {
		name string
		body interface{}
	}{
		{"malformed json", `{"combinations":`},
		{"no combinations", ContentRequest{}},
		{"unknown ad type", ContentRequest{Combinations: map[string][]string{orientationPortrait: {"video"}}}},
		{"empty type list", ContentRequest{Combinations: map[string][]string{orientationPortrait: {}}}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			token := s.session(t)

			status, body := s.post(t, endpointContent, token, tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, CodeInvalidData, decodeEnvelope(t, body).Error)
		})
	}

	t.Run("orientation outside the session", func(t *testing.T) {
		s := newTestServer(t)
		req := validSessionRequest()
		req.Orientations = []string{orientationPortrait}
		_, body := s.post(t, endpointSession, "", req)
		var sess SessionResponse
		require.NoError(t, json.Unmarshal(body, &sess))

		_, body = s.post(t, endpointContent, sess.SessionToken, ContentRequest{
			Combinations: map[string][]string{orientationLandscape: {adTypeBanner}},
		})
		assert.Equal(t, CodeInvalidData, decodeEnvelope(t, body).Error)
	})
}

func TestGetContent_RateLimit(t *testing.T) {
	s := newTestServer(t, func(c *Config) {
		c.RateLimit = 2
		c.RateWindow = 10 * time.Second
	})
	token := s.session(t)

	for i := 0; i < 2; i++ {
		status, _ := s.post(t, endpointContent, token, bannerRequest())
		require.Equal(t, http.StatusOK, status)
	}

	status, body := s.post(t, endpointContent, token, bannerRequest())
	assert.Equal(t, http.StatusTooManyRequests, status)
	env := decodeEnvelope(t, body)
	assert.Equal(t, CodeRateLimited, env.Error)
	require.NotNil(t, env.Wait)
	assert.Equal(t, float64(10), *env.Wait)

	s.clock.Advance(4500 * time.Millisecond)
	_, body = s.post(t, endpointContent, token, bannerRequest())
	env = decodeEnvelope(t, body)
	require.NotNil(t, env.Wait)
	assert.Equal(t, float64(6), *env.Wait, "wait is rounded up to whole seconds")

	other := s.session(t)
	status, _ = s.post(t, endpointContent, other, bannerRequest())
	assert.Equal(t, http.StatusOK, status, "limits are per session")

	s.clock.Advance(6 * time.Second)
	status, _ = s.post(t, endpointContent, token, bannerRequest())
	assert.Equal(t, http.StatusOK, status)
}

func TestGetContent_FaultInjection(t *testing.T) {
	s := newTestServer(t, func(c *Config) { c.FaultEvery = 3 })
	token := s.session(t)

	var statuses []int
	for i := 0; i < 6; i++ {
		status, _ := s.post(t, endpointContent, token, bannerRequest())
		statuses = append(statuses, status)
	}

	assert.Equal(t, []int{200, 200, 500, 200, 200, 500}, statuses)
	assert.Equal(t, float64(2), s.rejections(t, endpointContent, CodeInternalServerError))
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	token := s.session(t)
	s.post(t, endpointContent, token, bannerRequest())

	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health.Status)

	resp, err = s.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `adserver_creatives_served_total{ad_type="banner",orientation="portrait"} 2`)
	assert.Contains(t, string(body), "adserver_active_sessions 1")

	require.NoError(t, s.store.Close())
	resp, err = s.app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, err = s.app.Test(httptest.NewRequest(http.MethodGet, "/v2/nothing", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
