// Package sdktest provides a scriptable in-process ad server for exercising the
// SDK over real HTTP.
package sdktest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"
)

// MockServer provides a configurable ad server for tests
type MockServer struct {
	*httptest.Server
	mu           sync.RWMutex
	handlers     map[string]HandlerFunc
	requestCount atomic.Int32
	requests     []RecordedRequest
}

// HandlerFunc is a custom handler function type
type HandlerFunc func(w http.ResponseWriter, r *http.Request) (int, interface{})

// RecordedRequest stores information about a received request
type RecordedRequest struct {
	Method  string
	Path    string
	Headers http.Header
	Body    []byte
	Time    time.Time
}

// Decode unmarshals the recorded body into v
func (r RecordedRequest) Decode(v interface{}) error {
	return json.Unmarshal(r.Body, v)
}

// NewMockServer creates a mock server answering both ad endpoints
func NewMockServer() *MockServer {
	ms := &MockServer{
		handlers: make(map[string]HandlerFunc),
		requests: make([]RecordedRequest, 0),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", ms.handleRequest)

	ms.Server = httptest.NewServer(mux)
	ms.setupDefaultHandlers()

	return ms
}

// setupDefaultHandlers answers with a session and one creative per requested pair
func (ms *MockServer) setupDefaultHandlers() {
	ms.RegisterHandler("POST /v1/session", func(w http.ResponseWriter, r *http.Request) (int, interface{}) {
		return http.StatusOK, SessionResponse("token-1", 1, 30)
	})

	ms.RegisterHandler("POST /v1/content", func(w http.ResponseWriter, r *http.Request) (int, interface{}) {
		var body struct {
			Combinations map[string][]string `json:"combinations"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return http.StatusBadRequest, ErrorEnvelope("err_invalid_data")
		}
		return http.StatusOK, ContentResponse(body.Combinations, time.Now().Add(time.Hour))
	})
}

// RegisterHandler registers a custom handler for a method and path, e.g. "POST /v1/content"
func (ms *MockServer) RegisterHandler(pattern string, handler HandlerFunc) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.handlers[pattern] = handler
}

// handleRequest routes requests to appropriate handlers
func (ms *MockServer) handleRequest(w http.ResponseWriter, r *http.Request) {
	body := make([]byte, 0)
	if r.Body != nil {
		body, _ = io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))
	}

	ms.mu.Lock()
	ms.requests = append(ms.requests, RecordedRequest{
		Method:  r.Method,
		Path:    r.URL.Path,
		Headers: r.Header.Clone(),
		Body:    body,
		Time:    time.Now(),
	})
	ms.mu.Unlock()

	ms.requestCount.Add(1)

	ms.mu.RLock()
	handler := ms.handlers[r.Method+" "+r.URL.Path]
	ms.mu.RUnlock()

	if handler == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	status, response := handler(w, r)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if response != nil {
		json.NewEncoder(w).Encode(response)
	}
}

// GetRequestCount returns the total number of requests received
func (ms *MockServer) GetRequestCount() int {
	return int(ms.requestCount.Load())
}

// GetRequests returns all recorded requests
func (ms *MockServer) GetRequests() []RecordedRequest {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	result := make([]RecordedRequest, len(ms.requests))
	copy(result, ms.requests)
	return result
}

// RequestsTo returns the recorded requests for path
func (ms *MockServer) RequestsTo(path string) []RecordedRequest {
	var out []RecordedRequest
	for _, r := range ms.GetRequests() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// Reset clears all recorded requests
func (ms *MockServer) Reset() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.requestCount.Store(0)
	ms.requests = ms.requests[:0]
}

// WithErrorEnvelope makes pattern always answer with the error code
func (ms *MockServer) WithErrorEnvelope(pattern string, statusCode int, code string) {
	ms.RegisterHandler(pattern, func(w http.ResponseWriter, r *http.Request) (int, interface{}) {
		return statusCode, ErrorEnvelope(code)
	})
}

// WithRetryResponse makes pattern fail failCount times with the given status
// and no envelope before falling back to next
func (ms *MockServer) WithRetryResponse(pattern string, failCount int, failStatus int, next HandlerFunc) {
	attempts := atomic.Int32{}
	ms.RegisterHandler(pattern, func(w http.ResponseWriter, r *http.Request) (int, interface{}) {
		if int(attempts.Add(1)) <= failCount {
			return failStatus, nil
		}
		return next(w, r)
	})
}

// Close shuts down the mock server
func (ms *MockServer) Close() {
	if ms.Server != nil {
		ms.Server.Close()
	}
}
