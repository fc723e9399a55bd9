package telemetry

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

// Init initializes logging and tracing
func Init(cfg *Config) error {
	if err := InitLogger(cfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := InitTracing(cfg); err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	L().WithFields(logrus.Fields{
		"service":      cfg.ServiceName,
		"version":      cfg.ServiceVersion,
		"environment":  cfg.Environment,
		"tracing":      cfg.EnableTracing,
		"exportToFile": cfg.ExportToFile,
	}).Info("Telemetry initialized")

	return nil
}

// Shutdown flushes spans and closes log files
func Shutdown(ctx context.Context) error {
	if err := CloseTracing(ctx); err != nil {
		L().WithError(err).Error("Failed to close tracing")
	}

	if err := CloseLogger(); err != nil {
		L().WithError(err).Error("Failed to close logger")
	}

	return nil
}

// PrometheusHandler serves the metrics gathered by g
func PrometheusHandler(g prometheus.Gatherer) fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}

// FiberMetricsMiddleware traces each request and records it in m
func FiberMetricsMiddleware(m *ServerMetrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		ctx, span := StartSpan(c.UserContext(), fmt.Sprintf("%s %s", c.Method(), c.Path()),
			trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		c.SetUserContext(ctx)

		err := c.Next()

		status := c.Response().StatusCode()
		m.RecordHTTPRequest(c.Method(), c.Route().Path, strconv.Itoa(status), time.Since(start))

		span.SetAttributes(
			semconv.HTTPMethodKey.String(c.Method()),
			semconv.HTTPTargetKey.String(c.Path()),
			semconv.HTTPStatusCodeKey.Int(status),
		)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else if status >= 400 {
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}

// FiberLoggingMiddleware returns a Fiber middleware for structured logging
func FiberLoggingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		entry := WithContext(c.UserContext()).WithFields(logrus.Fields{
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     c.Response().StatusCode(),
			"duration":   time.Since(start).Milliseconds(),
			"ip":         c.IP(),
			"request_id": c.Get("X-Request-ID"),
		})

		if err != nil {
			entry.WithError(err).Error("Request failed")
		} else if c.Response().StatusCode() >= 500 {
			entry.Warn("Request completed with error status")
		} else {
			entry.Debug("Request completed")
		}

		return err
	}
}
