package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

const timestampFormat = "2006-01-02T15:04:05.000Z07:00"

var (
	loggerMu sync.RWMutex
	logger   *logrus.Logger
	logHook  io.Closer
)

// InitLogger replaces the global logger with one built from cfg
func InitLogger(cfg *Config) error {
	l, hook, err := NewLogger(cfg)
	if err != nil {
		return err
	}

	loggerMu.Lock()
	defer loggerMu.Unlock()
	if logHook != nil {
		_ = logHook.Close()
	}
	logger, logHook = l, hook
	return nil
}

// NewLogger builds a logger without installing it globally. The returned hook
// closer is non-nil when logs are mirrored to a file.
func NewLogger(cfg *Config) (*logrus.Logger, io.Closer, error) {
	l := logrus.New()

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if cfg.LogFormat == "text" {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: timestampFormat,
		})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: timestampFormat,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "@timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}

	l.AddHook(&serviceHook{fields: logrus.Fields{
		"service.name":    cfg.ServiceName,
		"service.version": cfg.ServiceVersion,
		"environment":     cfg.Environment,
	}})

	if !cfg.ExportToFile || cfg.LogsFilePath == "" {
		return l, nil, nil
	}

	hook, err := newJSONFileHook(cfg.LogsFilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create log file hook: %w", err)
	}
	l.AddHook(hook)
	return l, hook, nil
}

// serviceHook stamps every entry with the service identity
type serviceHook struct {
	fields logrus.Fields
}

func (h *serviceHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *serviceHook) Fire(entry *logrus.Entry) error {
	for k, v := range h.fields {
		if _, ok := entry.Data[k]; !ok {
			entry.Data[k] = v
		}
	}
	return nil
}

// jsonFileHook mirrors log entries as JSON lines into a file for local-otel
type jsonFileHook struct {
	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder
}

func newJSONFileHook(path string) (*jsonFileHook, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &jsonFileHook{file: file, encoder: json.NewEncoder(file)}, nil
}

func (h *jsonFileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *jsonFileHook) Fire(entry *logrus.Entry) error {
	data := make(map[string]interface{}, len(entry.Data)+3)
	for k, v := range entry.Data {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		data[k] = v
	}
	data["@timestamp"] = entry.Time.Format(timestampFormat)
	data["level"] = entry.Level.String()
	data["message"] = entry.Message

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.encoder.Encode(data)
}

// Close closes the underlying file
func (h *jsonFileHook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.file.Close()
}

// L returns the global logger instance
func L() *logrus.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	if logger == nil {
		return logrus.StandardLogger()
	}
	return logger
}

// WithContext adds trace information to the logger
func WithContext(ctx context.Context) *logrus.Entry {
	entry := L().WithContext(ctx)

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		entry = entry.WithFields(logrus.Fields{
			"trace.id": span.SpanContext().TraceID().String(),
			"span.id":  span.SpanContext().SpanID().String(),
		})
	}

	return entry
}

// WithFields adds fields to the logger
func WithFields(fields logrus.Fields) *logrus.Entry {
	return L().WithFields(fields)
}

// WithError adds an error to the logger
func WithError(err error) *logrus.Entry {
	return L().WithError(err)
}

// CloseLogger closes any open resources
func CloseLogger() error {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if logHook == nil {
		return nil
	}
	err := logHook.Close()
	logHook = nil
	return err
}
