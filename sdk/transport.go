package sdk

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	pathSession = "/v1/session"
	pathContent = "/v1/content"

	userAgent = "birb-ads-go-sdk/1.0.0"
)

// Response is the raw answer of the ad server to one request attempt.
type Response struct {
	StatusCode int
	Body       []byte
}

// Transport sends one JSON POST to the ad server. It must not retry; the
// client decides what to do with failures.
//
// A non-nil error means no usable answer arrived (connection failure,
// unreadable body). Any HTTP status, including 4xx and 5xx, is returned as a
// Response so the client can look for an error envelope in the body.
type Transport interface {
	Post(ctx context.Context, path string, headers map[string]string, body []byte) (*Response, error)
}

// httpTransport handles HTTP communication with the ad server.
type httpTransport struct {
	// client is the underlying HTTP client
	client *http.Client
	// baseURL is the parsed base URL for the API
	baseURL *url.URL
	// headers are sent with every request
	headers map[string]string
	tracer  trace.Tracer
}

// newHTTPTransport creates the net/http backed transport.
func newHTTPTransport(config *Config) (*httpTransport, error) {
	baseURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("base URL must have a scheme and host")
	}

	transport := &http.Transport{
		MaxIdleConns:        config.TransportConfig.MaxIdleConns,
		MaxConnsPerHost:     config.TransportConfig.MaxConnsPerHost,
		IdleConnTimeout:     config.TransportConfig.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	tp := config.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	return &httpTransport{
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
		baseURL: baseURL,
		headers: config.Headers,
		tracer:  tp.Tracer("github.com/birbparty/birb-ads/sdk"),
	}, nil
}

// Post performs a single JSON POST request
func (t *httpTransport) Post(ctx context.Context, path string, headers map[string]string, body []byte) (*Response, error) {
	ctx, span := t.tracer.Start(ctx, "POST "+path, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	op := "POST " + path
	fullURL := t.baseURL.ResolveReference(&url.URL{Path: path})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL.String(), bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &NetworkError{Op: op, Err: err}
	}

	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", requestID)
	for key, value := range t.headers {
		req.Header.Set(key, value)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	span.SetAttributes(
		attribute.String("http.method", http.MethodPost),
		attribute.String("http.url", fullURL.String()),
		attribute.String("adsdk.request_id", requestID),
	)

	resp, err := t.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &NetworkError{Op: "reading response", Err: err}
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", resp.StatusCode))
	} else {
		span.SetStatus(codes.Ok, "")
	}

	return &Response{StatusCode: resp.StatusCode, Body: respBody}, nil
}

// close releases idle connections
func (t *httpTransport) close() {
	t.client.CloseIdleConnections()
}
