package sdk

import (
	"fmt"
	"net/url"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/birbparty/birb-ads/internal/clock"
	"github.com/birbparty/birb-ads/internal/telemetry"
)

// Config holds the configuration for the ad client.
// Only BaseURL is required; everything else has sensible defaults.
//
// Configuration can be built using the fluent builder pattern:
//
//	config := sdk.DefaultConfig().
//	    WithBaseURL("https://ads.example.com").
//	    WithAppID("com.example.game").
//	    WithDevice(sdk.DeviceInfo{Density: 2, Language: "en", Country: "US"}).
//	    WithAutoRotate(true)
//
//	client, err := sdk.NewClient(config, renderer)
type Config struct {
	// BaseURL is the base URL of the ad server.
	// Default: "http://localhost:8080"
	BaseURL string `env:"ADSDK_BASE_URL,default=http://localhost:8080"`

	// Timeout bounds a single request attempt, including reading the response body.
	// Default: 30s
	Timeout time.Duration `env:"ADSDK_TIMEOUT,default=30s"`

	// AppID identifies the host application in session requests.
	AppID string `env:"ADSDK_APP_ID"`

	// Device describes the host device. It is sent with every session request.
	Device DeviceInfo

	// TestMode asks the server for test creatives.
	TestMode bool `env:"ADSDK_TEST_MODE,default=false"`

	// AutoRotate re-shows banners every rotation interval reported by the server.
	// Default: true
	AutoRotate bool `env:"ADSDK_AUTO_ROTATE,default=true"`

	// TransportConfig holds HTTP transport settings.
	TransportConfig TransportConfig

	// Headers are custom headers to include in all requests.
	Headers map[string]string

	// RetryStrategy decides retry delays.
	// If nil, DefaultRetryStrategy is used.
	RetryStrategy RetryStrategy

	// Observer for monitoring requests, retries and buffer levels.
	// If nil, NoopObserver is used.
	Observer Observer

	// Logger receives diagnostics for failures that are not surfaced as events.
	// If nil, the telemetry logger scoped with component=adsdk is used.
	Logger logrus.FieldLogger

	// TracerProvider creates the spans wrapping each request attempt.
	// If nil, the global provider is used.
	TracerProvider trace.TracerProvider

	clock     clock.Clock
	spawn     func(func())
	transport Transport
}

// DeviceInfo carries the device metadata sent at session creation.
type DeviceInfo struct {
	// Density is the screen pixel density.
	Density float64 `env:"ADSDK_DEVICE_DENSITY,default=1"`
	// Language is the device language, e.g. "en".
	Language string `env:"ADSDK_DEVICE_LANGUAGE,default=en"`
	// Country is the device country, e.g. "US".
	Country string `env:"ADSDK_DEVICE_COUNTRY"`
}

// TransportConfig holds HTTP transport configuration for connection pooling.
//
// Example:
//
//	config.TransportConfig = sdk.TransportConfig{
//	    MaxIdleConns:    20,
//	    MaxConnsPerHost: 4,
//	    IdleConnTimeout: 120 * time.Second,
//	}
type TransportConfig struct {
	// MaxIdleConns controls the maximum number of idle connections
	// across all hosts. Zero means no limit.
	// Default: 10
	MaxIdleConns int `env:"ADSDK_MAX_IDLE_CONNS,default=10"`

	// MaxConnsPerHost controls the maximum connections per host.
	// Default: 4
	MaxConnsPerHost int `env:"ADSDK_MAX_CONNS_PER_HOST,default=4"`

	// IdleConnTimeout is the maximum time an idle connection will remain idle
	// before closing itself. Zero means no limit.
	// Default: 90s
	IdleConnTimeout time.Duration `env:"ADSDK_IDLE_CONN_TIMEOUT,default=90s"`
}

// DefaultConfig returns a Config with sensible defaults suitable for most use cases.
//
// Example:
//
//	config := sdk.DefaultConfig().WithBaseURL("https://ads.example.com")
//	client, err := sdk.NewClient(config, renderer)
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "http://localhost:8080",
		Timeout:    30 * time.Second,
		AutoRotate: true,
		Device: DeviceInfo{
			Density:  1,
			Language: "en",
		},
		TransportConfig: TransportConfig{
			MaxIdleConns:    10,
			MaxConnsPerHost: 4,
			IdleConnTimeout: 90 * time.Second,
		},
		Headers:       make(map[string]string),
		RetryStrategy: DefaultRetryStrategy(),
		Observer:      &NoopObserver{},
	}
}

// LoadConfigFromEnv builds a Config from ADSDK_* environment variables.
// Unset variables take the defaults of DefaultConfig.
//
// Example:
//
//	// ADSDK_BASE_URL=https://ads.example.com ADSDK_APP_ID=com.example.game
//	config, err := sdk.LoadConfigFromEnv()
func LoadConfigFromEnv() (*Config, error) {
	cfg := DefaultConfig()
	if err := envdecode.StrictDecode(cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return nil, fmt.Errorf("decoding environment: %w", err)
	}
	return cfg, nil
}

// WithBaseURL sets the base URL of the ad server.
// The URL should include the protocol (http/https) but not trailing slashes.
func (c *Config) WithBaseURL(url string) *Config {
	c.BaseURL = url
	return c
}

// WithTimeout sets the timeout of a single request attempt.
func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.Timeout = timeout
	return c
}

// WithAppID sets the application identifier sent at session creation.
func (c *Config) WithAppID(appID string) *Config {
	c.AppID = appID
	return c
}

// WithDevice sets the device metadata sent at session creation.
func (c *Config) WithDevice(device DeviceInfo) *Config {
	c.Device = device
	return c
}

// WithTestMode toggles test creatives.
func (c *Config) WithTestMode(enabled bool) *Config {
	c.TestMode = enabled
	return c
}

// WithAutoRotate toggles banner auto-rotation.
func (c *Config) WithAutoRotate(enabled bool) *Config {
	c.AutoRotate = enabled
	return c
}

// WithHeader adds a custom header to be sent with all requests.
//
// Example:
//
//	config := sdk.DefaultConfig().
//	    WithHeader("X-Tenant-ID", "tenant-123")
func (c *Config) WithHeader(key, value string) *Config {
	if c.Headers == nil {
		c.Headers = make(map[string]string)
	}
	c.Headers[key] = value
	return c
}

// WithRetryStrategy sets a custom retry strategy.
//
// Example:
//
//	config := sdk.DefaultConfig().
//	    WithRetryStrategy(&sdk.ServerDirectedStrategy{
//	        ServerErrorWait: 30 * time.Second,
//	        Grace:           2 * time.Second,
//	    })
func (c *Config) WithRetryStrategy(strategy RetryStrategy) *Config {
	c.RetryStrategy = strategy
	return c
}

// WithObserver sets a custom observer for monitoring SDK internals.
func (c *Config) WithObserver(observer Observer) *Config {
	c.Observer = observer
	return c
}

// WithLogger sets the logger used for diagnostics.
func (c *Config) WithLogger(logger logrus.FieldLogger) *Config {
	c.Logger = logger
	return c
}

// WithTracerProvider sets the provider used for request spans.
func (c *Config) WithTracerProvider(tp trace.TracerProvider) *Config {
	c.TracerProvider = tp
	return c
}

// WithTransport replaces the HTTP transport, e.g. with a recording fake.
func (c *Config) WithTransport(t Transport) *Config {
	c.transport = t
	return c
}

// Validate validates the configuration and sets defaults for missing values.
// This is called automatically by NewClient.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL cannot be empty", ErrInvalidConfig)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("%w: invalid base URL: %v", ErrInvalidConfig, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: base URL must have a scheme and host", ErrInvalidConfig)
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Device.Density <= 0 {
		c.Device.Density = 1
	}
	if c.RetryStrategy == nil {
		c.RetryStrategy = DefaultRetryStrategy()
	}
	if c.Observer == nil {
		c.Observer = &NoopObserver{}
	}
	if c.Logger == nil {
		c.Logger = telemetry.L().WithField("component", "adsdk")
	}
	if c.TracerProvider == nil {
		c.TracerProvider = otel.GetTracerProvider()
	}
	if c.clock == nil {
		c.clock = clock.New()
	}
	if c.spawn == nil {
		c.spawn = func(f func()) { go f() }
	}
	return nil
}
