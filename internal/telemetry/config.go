package telemetry

import (
	"os"
	"strconv"
)

// Config holds the configuration for telemetry
type Config struct {
	// Production mode - OTLP
	OTLPEndpoint   string
	ServiceName    string
	Environment    string
	ServiceVersion string

	// Local mode - JSON lines on disk instead of a collector
	ExportToFile   bool
	TracesFilePath string
	LogsFilePath   string

	SamplingRate float64
	LogLevel     string
	// LogFormat is "json" or "text"
	LogFormat string

	EnableTracing bool
}

// NewConfigFromEnv creates a new config from environment variables
func NewConfigFromEnv(serviceName string) *Config {
	cfg := &Config{
		ServiceName:    getEnv("OTEL_SERVICE_NAME", serviceName),
		Environment:    getEnv("ENVIRONMENT", "development"),
		ServiceVersion: getEnv("SERVICE_VERSION", "unknown"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		SamplingRate:   getEnvFloat("OTEL_SAMPLING_RATE", 1.0),
		EnableTracing:  getEnvBool("ENABLE_TRACING", false),
	}

	if getEnvBool("OTEL_EXPORT_TO_FILE", false) {
		cfg.ExportToFile = true
		cfg.TracesFilePath = getEnv("OTEL_TRACES_FILE_PATH", "/tmp/otel/traces.json")
		cfg.LogsFilePath = getEnv("OTEL_LOGS_FILE_PATH", "/tmp/otel/logs.json")
	} else {
		cfg.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
