// Package eventbridge forwards SDK consumer events to NATS so that a host's
// ad activity can be observed outside the process.
package eventbridge

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/birbparty/birb-ads/sdk"
)

// Publisher publishes SDK events on NATS subjects derived from the event type
type Publisher struct {
	nc     *nats.Conn
	config *Config
	logger logrus.FieldLogger
	now    func() time.Time

	published atomic.Int64
	failed    atomic.Int64
}

// NewPublisher connects to NATS
func NewPublisher(config *Config, logger logrus.FieldLogger) (*Publisher, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger = logger.WithField("component", "eventbridge")

	opts := []nats.Option{
		nats.Name(config.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.WithError(err).Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.WithField("url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.WithError(err).Error("NATS error")
		}),
	}

	if config.User != "" && config.Password != "" {
		opts = append(opts, nats.UserInfo(config.User, config.Password))
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Publisher{
		nc:     nc,
		config: config,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Publish sends one event. It does not wait for the server.
func (p *Publisher) Publish(ev sdk.Event) error {
	data, err := NewEventMessage(ev, p.now()).Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.nc.Publish(p.config.Subject(string(ev.Type)), data); err != nil {
		p.failed.Add(1)
		return fmt.Errorf("failed to publish event: %w", err)
	}
	p.published.Add(1)
	return nil
}

// Listener returns an sdk.Listener forwarding every event. Publish failures
// are logged; they never reach the client.
func (p *Publisher) Listener() sdk.Listener {
	return func(ev sdk.Event) {
		if err := p.Publish(ev); err != nil {
			p.logger.WithError(err).WithField("event", ev.Type).Warn("Dropping ad event")
		}
	}
}

// Stats reports how many events were published and how many failed
func (p *Publisher) Stats() (published, failed int64) {
	return p.published.Load(), p.failed.Load()
}

// Health checks the NATS connection
func (p *Publisher) Health() error {
	if !p.nc.IsConnected() {
		return fmt.Errorf("NATS is not connected")
	}
	return nil
}

// Close flushes buffered events and closes the connection
func (p *Publisher) Close(ctx context.Context) error {
	if p.nc == nil || p.nc.IsClosed() {
		return nil
	}
	defer p.nc.Close()

	ctx, cancel := context.WithTimeout(ctx, p.config.FlushTimeout)
	defer cancel()
	if err := p.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush events: %w", err)
	}
	return nil
}
