package sandbox

import (
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
)

// Store backends
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config holds the sandbox ad server configuration
type Config struct {
	// Server configuration
	Host string `env:"SANDBOX_HOST,default=0.0.0.0"`
	Port int    `env:"SANDBOX_PORT,default=8080"`

	// AppKeys is a comma separated list of accepted app keys
	AppKeys string `env:"SANDBOX_APP_KEYS,default=demo-app-key"`

	// Session answers
	SessionTTL       time.Duration `env:"SANDBOX_SESSION_TTL,default=30m"`
	BufferMin        int           `env:"SANDBOX_BUFFER_MIN,default=2"`
	RotationInterval time.Duration `env:"SANDBOX_ROTATION_INTERVAL,default=30s"`

	// Content answers
	CreativeTTL      time.Duration `env:"SANDBOX_CREATIVE_TTL,default=10m"`
	CreativesPerPair int           `env:"SANDBOX_CREATIVES_PER_PAIR,default=2"`
	CDNBaseURL       string        `env:"SANDBOX_CDN_BASE_URL,default=https://cdn.birbads.dev"`

	// Per-session rate limit on the content endpoint. Zero disables it.
	RateLimit  int           `env:"SANDBOX_RATE_LIMIT,default=30"`
	RateWindow time.Duration `env:"SANDBOX_RATE_WINDOW,default=10s"`

	// FaultEvery answers every Nth content call with err_internal_server_error. Zero disables it.
	FaultEvery int `env:"SANDBOX_FAULT_EVERY,default=0"`

	RequestTimeout  time.Duration `env:"SANDBOX_REQUEST_TIMEOUT,default=30s"`
	ShutdownTimeout time.Duration `env:"SANDBOX_SHUTDOWN_TIMEOUT,default=30s"`
	MetricsPath     string        `env:"SANDBOX_METRICS_PATH,default=/metrics"`

	// Store selects the session store: "memory" or "redis"
	Store string `env:"SANDBOX_STORE,default=memory"`
	Redis RedisConfig
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr        string        `env:"REDIS_ADDR,default=localhost:6379"`
	Password    string        `env:"REDIS_PASSWORD"`
	DB          int           `env:"REDIS_DB,default=0"`
	KeyPrefix   string        `env:"REDIS_KEY_PREFIX,default=birb-ads:"`
	PoolSize    int           `env:"REDIS_POOL_SIZE,default=10"`
	DialTimeout time.Duration `env:"REDIS_DIAL_TIMEOUT,default=5s"`
}

// DefaultConfig returns the configuration used when no variable is set
func DefaultConfig() *Config {
	return &Config{
		Host:             "0.0.0.0",
		Port:             8080,
		AppKeys:          "demo-app-key",
		SessionTTL:       30 * time.Minute,
		BufferMin:        2,
		RotationInterval: 30 * time.Second,
		CreativeTTL:      10 * time.Minute,
		CreativesPerPair: 2,
		CDNBaseURL:       "https://cdn.birbads.dev",
		RateLimit:        30,
		RateWindow:       10 * time.Second,
		RequestTimeout:   30 * time.Second,
		ShutdownTimeout:  30 * time.Second,
		MetricsPath:      "/metrics",
		Store:            StoreMemory,
		Redis: RedisConfig{
			Addr:        "localhost:6379",
			KeyPrefix:   "birb-ads:",
			PoolSize:    10,
			DialTimeout: 5 * time.Second,
		},
	}
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()
	if err := envdecode.StrictDecode(cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return nil, fmt.Errorf("failed to decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the server cannot run with
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid SANDBOX_PORT: %d", c.Port)
	}
	if len(c.AppKeyList()) == 0 {
		return fmt.Errorf("SANDBOX_APP_KEYS must list at least one key")
	}
	if c.BufferMin < 1 {
		return fmt.Errorf("invalid SANDBOX_BUFFER_MIN: %d", c.BufferMin)
	}
	if c.CreativesPerPair < 1 {
		return fmt.Errorf("invalid SANDBOX_CREATIVES_PER_PAIR: %d", c.CreativesPerPair)
	}
	if c.SessionTTL <= 0 || c.CreativeTTL <= 0 {
		return fmt.Errorf("session and creative TTLs must be positive")
	}
	if c.RateLimit > 0 && c.RateWindow <= 0 {
		return fmt.Errorf("SANDBOX_RATE_WINDOW must be positive when rate limiting is enabled")
	}
	if c.FaultEvery < 0 {
		return fmt.Errorf("invalid SANDBOX_FAULT_EVERY: %d", c.FaultEvery)
	}
	switch c.Store {
	case StoreMemory, StoreRedis:
	default:
		return fmt.Errorf("unknown SANDBOX_STORE %q", c.Store)
	}
	return nil
}

// AppKeyList returns the accepted app keys
func (c *Config) AppKeyList() []string {
	var keys []string
	for _, k := range strings.Split(c.AppKeys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// Address returns the listen address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
