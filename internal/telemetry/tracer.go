package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var (
	tracerMu sync.RWMutex
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
)

// fileSpan is one exported span, written as a JSON line
type fileSpan struct {
	TraceID    string                 `json:"trace_id"`
	SpanID     string                 `json:"span_id"`
	ParentID   string                 `json:"parent_id,omitempty"`
	Name       string                 `json:"name"`
	Kind       string                 `json:"kind"`
	StartTime  time.Time              `json:"start_time"`
	EndTime    time.Time              `json:"end_time"`
	Attributes map[string]interface{} `json:"attributes"`
	Status     string                 `json:"status"`
	Events     []fileSpanEvent        `json:"events,omitempty"`
}

type fileSpanEvent struct {
	Name       string                 `json:"name"`
	Timestamp  time.Time              `json:"timestamp"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// InitTracing installs the global tracer provider and propagator. With
// tracing disabled a noop provider is installed.
func InitTracing(cfg *Config) error {
	tracerMu.Lock()
	defer tracerMu.Unlock()

	if !cfg.EnableTracing {
		otel.SetTracerProvider(noop.NewTracerProvider())
		tracer = otel.Tracer(cfg.ServiceName)
		return nil
	}

	tp, err := NewTracerProvider(context.Background(), cfg)
	if err != nil {
		return err
	}

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	provider = tp
	tracer = tp.Tracer(cfg.ServiceName)
	return nil
}

// NewTracerProvider builds a provider exporting to OTLP gRPC, or to a file
// when cfg.ExportToFile is set.
func NewTracerProvider(ctx context.Context, cfg *Config) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	if cfg.ExportToFile && cfg.TracesFilePath != "" {
		exporter, err = NewFileSpanExporter(cfg.TracesFilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create file exporter: %w", err)
		}
	} else {
		client := otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		exporter, err = otlptrace.New(ctx, client)
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))),
	), nil
}

// FileSpanExporter writes finished spans as JSON lines for local-otel
type FileSpanExporter struct {
	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder
}

// NewFileSpanExporter opens path for appending, creating parent directories
func NewFileSpanExporter(path string) (*FileSpanExporter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	return &FileSpanExporter{file: file, encoder: json.NewEncoder(file)}, nil
}

// ExportSpans implements sdktrace.SpanExporter
func (f *FileSpanExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, span := range spans {
		out := fileSpan{
			TraceID:    span.SpanContext().TraceID().String(),
			SpanID:     span.SpanContext().SpanID().String(),
			Name:       span.Name(),
			Kind:       span.SpanKind().String(),
			StartTime:  span.StartTime(),
			EndTime:    span.EndTime(),
			Status:     span.Status().Code.String(),
			Attributes: make(map[string]interface{}, len(span.Attributes())),
		}
		if span.Parent().IsValid() {
			out.ParentID = span.Parent().SpanID().String()
		}
		for _, attr := range span.Attributes() {
			out.Attributes[string(attr.Key)] = attr.Value.AsInterface()
		}
		for _, event := range span.Events() {
			ev := fileSpanEvent{Name: event.Name, Timestamp: event.Time}
			if len(event.Attributes) > 0 {
				ev.Attributes = make(map[string]interface{}, len(event.Attributes))
				for _, attr := range event.Attributes {
					ev.Attributes[string(attr.Key)] = attr.Value.AsInterface()
				}
			}
			out.Events = append(out.Events, ev)
		}

		if err := f.encoder.Encode(out); err != nil {
			return err
		}
	}

	return nil
}

// Shutdown implements sdktrace.SpanExporter
func (f *FileSpanExporter) Shutdown(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.file.Close()
}

// Tracer returns the global tracer instance
func Tracer() trace.Tracer {
	tracerMu.RLock()
	defer tracerMu.RUnlock()
	if tracer == nil {
		return otel.Tracer("birb-ads")
	}
	return tracer
}

// StartSpan starts a new span with the given name
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// CloseTracing flushes and shuts down the provider installed by InitTracing
func CloseTracing(ctx context.Context) error {
	tracerMu.Lock()
	tp := provider
	provider = nil
	tracerMu.Unlock()

	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}
