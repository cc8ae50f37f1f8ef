package publish

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/voltlock/voltlock/pkg/observability/logger"
)

const (
	defaultMQTTConnectTimeout = 10 * time.Second
	defaultMQTTPublishTimeout = 5 * time.Second
)

// MQTTPublisherConfig configures the MQTT publisher.
type MQTTPublisherConfig struct {
	BrokerURL      string
	ClientID       string
	Username       string
	Password       string
	QoS            int
	Retained       bool
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

func (c *MQTTPublisherConfig) normalize() {
	if strings.TrimSpace(c.ClientID) == "" {
		c.ClientID = "voltlock"
	}
	if c.QoS < 0 || c.QoS > 2 {
		c.QoS = 1
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultMQTTConnectTimeout
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = defaultMQTTPublishTimeout
	}
}

// MQTTPublisher publishes readings over MQTT. The paho client reconnects on
// its own; publishes while disconnected fail fast rather than queue, since
// the next poll cycle supersedes the reading anyway.
type MQTTPublisher struct {
	client pahomqtt.Client
	log    logger.Logger
	config MQTTPublisherConfig

	mu     sync.Mutex
	closed bool
}

// NewMQTTPublisher connects to the broker and returns a ready publisher.
func NewMQTTPublisher(cfg MQTTPublisherConfig, log logger.Logger) (*MQTTPublisher, error) {
	if log == nil {
		return nil, publishError(ErrInvalidArgument, "logger is required")
	}
	if strings.TrimSpace(cfg.BrokerURL) == "" {
		return nil, publishError(ErrInvalidArgument, "broker url is required")
	}
	cfg.normalize()

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(false).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetOrderMatters(false)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	p := &MQTTPublisher{
		log:    log,
		config: cfg,
	}
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		p.log.Warn("mqtt connection lost", "error", err)
	})
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		p.log.Info("mqtt connected", "broker", cfg.BrokerURL, "client_id", cfg.ClientID)
	})

	p.client = pahomqtt.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, publishError(ErrBrokerUnavailable, "mqtt connect timed out")
	}
	if err := token.Error(); err != nil {
		return nil, errors.Join(publishError(ErrBrokerUnavailable, "mqtt connect failed"), err)
	}
	return p, nil
}

// Publish sends payload to topic at the configured QoS.
func (p *MQTTPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	if p == nil || p.client == nil {
		return publishError(ErrInvalidArgument, "mqtt publisher is not initialized")
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return publishError(ErrClosed, "mqtt publisher")
	}
	p.mu.Unlock()

	topic = strings.TrimSpace(topic)
	if topic == "" {
		return publishError(ErrInvalidArgument, "topic is required")
	}

	timeout := p.config.PublishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	token := p.client.Publish(topic, byte(p.config.QoS), p.config.Retained, payload)
	if !token.WaitTimeout(timeout) {
		return publishError(ErrBrokerUnavailable, "mqtt publish timed out for "+topic)
	}
	if err := token.Error(); err != nil {
		return errors.Join(publishError(ErrBrokerUnavailable, "mqtt publish failed for "+topic), err)
	}
	return nil
}

// HealthCheck reports whether the client holds a live broker connection.
func (p *MQTTPublisher) HealthCheck(context.Context) error {
	if p == nil || p.client == nil {
		return publishError(ErrInvalidArgument, "mqtt publisher is not initialized")
	}
	if !p.client.IsConnectionOpen() {
		return publishError(ErrBrokerUnavailable, "mqtt connection is down")
	}
	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.client.Disconnect(250)
	return nil
}
