package publish

import (
	"fmt"
	"strings"

	"github.com/voltlock/voltlock/pkg/config"
	"github.com/voltlock/voltlock/pkg/observability/logger"
)

// Cosa fa: seleziona e inizializza il publisher in base alla config.
// Cosa NON fa: non fa fan-out su più broker contemporaneamente.
// Esempio minimo: pub, err := publish.NewPublisher(cfg.Publisher, log)
func NewPublisher(cfg config.PublisherConfig, log logger.Logger) (Publisher, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case config.PublisherNone, "":
		return NewNoopPublisher(), nil
	case config.PublisherMQTT:
		return NewMQTTPublisher(MQTTPublisherConfig{
			BrokerURL:      cfg.MQTT.BrokerURL,
			ClientID:       cfg.MQTT.ClientID,
			Username:       cfg.MQTT.Username,
			Password:       cfg.MQTT.Password,
			QoS:            cfg.MQTT.QoS,
			Retained:       cfg.MQTT.Retained,
			ConnectTimeout: cfg.MQTT.ConnectTimeout,
		}, log)
	case config.PublisherRabbitMQ:
		return NewRabbitMQPublisher(RabbitMQPublisherConfig{
			URL:              cfg.RabbitMQ.URL,
			Exchange:         cfg.RabbitMQ.Exchange,
			RoutingKey:       cfg.RabbitMQ.RoutingKey,
			OperationTimeout: cfg.RabbitMQ.OperationTimeout,
		}, log)
	default:
		return nil, fmt.Errorf("unsupported publisher.type %q (supported: none, mqtt, rabbitmq)", cfg.Type)
	}
}
