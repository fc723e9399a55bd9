package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/birbparty/birb-ads/internal/clock/clocktest"
)

var testStart = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// fakeRenderer records presentations and can be told to fail.
type fakeRenderer struct {
	mu          sync.Mutex
	orientation Orientation
	width       int
	height      int
	shown       []*Creative
	hidden      int
	showErr     error
	showPanic   bool
	subscriber  func(RendererEvent)
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{orientation: OrientationPortrait, width: 1080, height: 1920}
}

func (r *fakeRenderer) ScreenSize() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height
}

func (r *fakeRenderer) Orientation() Orientation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orientation
}

func (r *fakeRenderer) ShowAd(creative *Creative, opts *ShowOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.showPanic {
		panic("renderer exploded")
	}
	if r.showErr != nil {
		return r.showErr
	}
	r.shown = append(r.shown, creative)
	return nil
}

func (r *fakeRenderer) HideBanner() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hidden++
	return nil
}

func (r *fakeRenderer) Subscribe(fn func(RendererEvent)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscriber = fn
}

func (r *fakeRenderer) emit(ev RendererEvent) {
	r.mu.Lock()
	fn := r.subscriber
	r.mu.Unlock()
	fn(ev)
}

func (r *fakeRenderer) shownCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.shown)
}

type transportCall struct {
	path    string
	headers map[string]string
	body    []byte
}

func (c transportCall) decode(t *testing.T, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(c.body, v))
}

type handlerFunc func(call transportCall) (*Response, error)

// fakeTransport answers requests from per-path handlers and records every call.
type fakeTransport struct {
	mu       sync.Mutex
	calls    []transportCall
	handlers map[string]handlerFunc
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{handlers: make(map[string]handlerFunc)}
}

func (f *fakeTransport) handle(path string, h handlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[path] = h
}

func (f *fakeTransport) Post(ctx context.Context, path string, headers map[string]string, body []byte) (*Response, error) {
	call := transportCall{path: path, headers: headers, body: body}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	h := f.handlers[path]
	f.mu.Unlock()

	if h == nil {
		return &Response{StatusCode: 404}, nil
	}
	return h(call)
}

func (f *fakeTransport) callsTo(path string) []transportCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []transportCall
	for _, c := range f.calls {
		if c.path == path {
			out = append(out, c)
		}
	}
	return out
}

func jsonResponse(status int, v interface{}) *Response {
	body, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return &Response{StatusCode: status, Body: body}
}

func sessionOK(token string, min int, rotationSeconds float64) handlerFunc {
	return func(transportCall) (*Response, error) {
		return jsonResponse(200, map[string]interface{}{
			"session_token":     token,
			"buffer_limits":     map[string]int{"min": min},
			"rotation_interval": rotationSeconds,
		}), nil
	}
}

func envelope(code ErrorCode) handlerFunc {
	return func(transportCall) (*Response, error) {
		return jsonResponse(200, map[string]interface{}{"error": code}), nil
	}
}

func emptyContent() handlerFunc {
	return func(transportCall) (*Response, error) {
		return jsonResponse(200, map[string]interface{}{"result": []interface{}{}}), nil
	}
}

// contentFor answers with one creative per requested combination.
func contentFor(fc *clocktest.Fake, ttl time.Duration) handlerFunc {
	return func(call transportCall) (*Response, error) {
		var req contentRequest
		if err := json.Unmarshal(call.body, &req); err != nil {
			return nil, err
		}
		var result []contentItem
		for o, types := range req.Combinations {
			for _, t := range types {
				result = append(result, contentItem{
					Ad:        adDescriptor{Orientation: o, Type: t, Width: 320, Height: 50},
					URL:       fmt.Sprintf("https://cdn.example.com/%s/%s", o, t),
					ExpiresAt: fc.Now().Add(ttl),
				})
			}
		}
		return jsonResponse(200, contentResponse{Result: result}), nil
	}
}

// eventRecorder collects consumer events.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) listen(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func (r *eventRecorder) ofType(t EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type harness struct {
	client    *client
	clock     *clocktest.Fake
	transport *fakeTransport
	renderer  *fakeRenderer
	events    *eventRecorder
}

// newHarness builds a client on a fake clock whose network calls complete
// synchronously. Session creation answers with min=2 and a 30s rotation; the
// content endpoint answers with nothing until a test installs a handler.
func newHarness(t *testing.T, configure ...func(*Config)) *harness {
	t.Helper()

	fc := clocktest.NewFake(testStart)
	ft := newFakeTransport()
	ft.handle(pathSession, sessionOK("token-1", 2, 30))
	ft.handle(pathContent, emptyContent())

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := DefaultConfig().
		WithBaseURL("http://ads.test").
		WithAppID("com.example.game").
		WithDevice(DeviceInfo{Density: 2, Language: "en", Country: "US"}).
		WithLogger(logger).
		WithTransport(ft)
	cfg.clock = fc
	cfg.spawn = func(f func()) { f() }
	for _, fn := range configure {
		fn(cfg)
	}

	fr := newFakeRenderer()
	c, err := newClient(cfg, fr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	rec := &eventRecorder{}
	c.On(rec.listen)

	return &harness{
		client:    c,
		clock:     fc,
		transport: ft,
		renderer:  fr,
		events:    rec,
	}
}

func (h *harness) init(adTypes ...AdType) {
	if len(adTypes) == 0 {
		adTypes = []AdType{AdTypeBanner, AdTypeInterstitial}
	}
	h.client.Init("app-key", adTypes, []Orientation{OrientationPortrait})
}

func (h *harness) creative(t AdType, ttl time.Duration) *Creative {
	return &Creative{
		Orientation: OrientationPortrait,
		AdType:      t,
		Width:       320,
		Height:      50,
		URL:         "https://cdn.example.com/" + string(t),
		ExpiresAt:   h.clock.Now().Add(ttl),
	}
}

var errRendererBroken = errors.New("renderer broken")
