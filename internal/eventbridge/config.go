package eventbridge

import (
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
)

// Config holds the NATS connection and subject settings
type Config struct {
	URL      string `env:"NATS_URL"`
	Name     string `env:"NATS_NAME,default=birb-ads"`
	User     string `env:"NATS_USER"`
	Password string `env:"NATS_PASSWORD"`

	// SubjectPrefix is prepended to the event type, e.g. "ads.events.ad-shown"
	SubjectPrefix string        `env:"NATS_SUBJECT_PREFIX,default=ads.events"`
	ReconnectWait time.Duration `env:"NATS_RECONNECT_WAIT,default=2s"`
	FlushTimeout  time.Duration `env:"NATS_FLUSH_TIMEOUT,default=5s"`
}

// DefaultConfig returns the settings used for a local NATS server
func DefaultConfig() *Config {
	return &Config{
		URL:           "nats://localhost:4222",
		Name:          "birb-ads",
		SubjectPrefix: "ads.events",
		ReconnectWait: 2 * time.Second,
		FlushTimeout:  5 * time.Second,
	}
}

// LoadConfig reads the bridge configuration from the environment. Enabled
// reports false when NATS_URL is unset.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := envdecode.StrictDecode(cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return nil, fmt.Errorf("failed to decode event bridge config: %w", err)
	}
	return cfg, nil
}

// Enabled reports whether a NATS URL is configured
func (c *Config) Enabled() bool {
	return c.URL != ""
}

// Subject returns the subject an event type is published on
func (c *Config) Subject(eventType string) string {
	return strings.TrimSuffix(c.SubjectPrefix, ".") + "." + eventType
}
