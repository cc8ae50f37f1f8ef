package publish

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/voltlock/voltlock/pkg/observability/logger"
)

const defaultAMQPOperationTimeout = 10 * time.Second

// RabbitMQPublisherConfig configures the RabbitMQ publisher.
type RabbitMQPublisherConfig struct {
	URL              string
	Exchange         string
	RoutingKey       string
	OperationTimeout time.Duration
}

func (c *RabbitMQPublisherConfig) normalize() {
	if strings.TrimSpace(c.Exchange) == "" {
		c.Exchange = "voltlock.readings"
	}
	if strings.TrimSpace(c.RoutingKey) == "" {
		c.RoutingKey = "reading.latest"
	}
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = defaultAMQPOperationTimeout
	}
}

// RabbitMQPublisher publishes readings to a durable topic exchange.
type RabbitMQPublisher struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	log    logger.Logger
	config RabbitMQPublisherConfig

	mu     sync.Mutex
	closed bool
}

// NewRabbitMQPublisher connects, declares the exchange, and returns a ready
// publisher.
func NewRabbitMQPublisher(cfg RabbitMQPublisherConfig, log logger.Logger) (*RabbitMQPublisher, error) {
	if log == nil {
		return nil, publishError(ErrInvalidArgument, "logger is required")
	}
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, publishError(ErrInvalidArgument, "rabbitmq url is required")
	}
	cfg.normalize()

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, errors.Join(publishError(ErrBrokerUnavailable, "connect rabbitmq failed"), err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Join(publishError(ErrBrokerUnavailable, "open rabbitmq channel failed"), err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, errors.Join(publishError(ErrBrokerUnavailable, "declare exchange failed"), err)
	}

	return &RabbitMQPublisher{
		conn:   conn,
		ch:     ch,
		log:    log,
		config: cfg,
	}, nil
}

// Publish sends payload to the exchange. An empty topic falls back to the
// configured routing key.
func (p *RabbitMQPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	if p == nil || p.ch == nil {
		return publishError(ErrInvalidArgument, "rabbitmq publisher is not initialized")
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return publishError(ErrClosed, "rabbitmq publisher")
	}
	p.mu.Unlock()

	routingKey := strings.TrimSpace(topic)
	if routingKey == "" {
		routingKey = p.config.RoutingKey
	}
	if ctx == nil {
		ctx = context.Background()
	}
	opCtx, cancel := context.WithTimeout(ctx, p.config.OperationTimeout)
	defer cancel()

	publishing := amqp.Publishing{
		ContentType: "application/json",
		Body:        payload,
		Timestamp:   time.Now().UTC(),
	}
	if err := p.ch.PublishWithContext(opCtx, p.config.Exchange, routingKey, false, false, publishing); err != nil {
		return errors.Join(publishError(ErrBrokerUnavailable, "publish failed for "+routingKey), err)
	}
	return nil
}

// HealthCheck reports whether the connection is still open.
func (p *RabbitMQPublisher) HealthCheck(context.Context) error {
	if p == nil || p.conn == nil {
		return publishError(ErrInvalidArgument, "rabbitmq publisher is not initialized")
	}
	if p.conn.IsClosed() {
		return publishError(ErrBrokerUnavailable, "rabbitmq connection is closed")
	}
	return nil
}

// Close closes the channel and connection.
func (p *RabbitMQPublisher) Close() error {
	if p == nil || p.conn == nil {
		return nil
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	var errs []error
	if p.ch != nil {
		if err := p.ch.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := p.conn.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
