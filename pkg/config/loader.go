package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Loader defines the interface for loading configuration
type Loader interface {
	Load() (*Config, error)
	Validate(*Config) error
}

// ViperLoader implements Loader using Viper for configuration management
type ViperLoader struct {
	configFile string
	envPrefix  string
}

// NewViperLoader creates a new ViperLoader
// configFile: path to configuration file (optional, can be empty)
// envPrefix: prefix for environment variables (e.g., "VOLTLOCK")
func NewViperLoader(configFile, envPrefix string) *ViperLoader {
	return &ViperLoader{
		configFile: configFile,
		envPrefix:  envPrefix,
	}
}

// Load loads configuration with precedence: ENV > file > defaults
func (l *ViperLoader) Load() (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	l.setDefaults(v, defaults)

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
		if err := v.ReadInConfig(); err != nil {
			// Only return error if a file was explicitly specified but couldn't be read
			return nil, fmt.Errorf("failed to read config file %s: %w", l.configFile, err)
		}
	}

	// Environment variables override file config through explicit bindings.
	v.SetEnvPrefix(l.envPrefix)
	l.bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (l *ViperLoader) setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("service.name", d.Service.Name)
	v.SetDefault("service.environment", d.Service.Environment)

	v.SetDefault("device.host", d.Device.Host)
	v.SetDefault("device.port", d.Device.Port)
	v.SetDefault("device.serial", d.Device.Serial)
	v.SetDefault("device.poll_interval", d.Device.PollInterval)
	v.SetDefault("device.full_refresh_every", d.Device.FullRefreshEvery)
	v.SetDefault("device.command_queue_size", d.Device.CommandQueueSize)

	v.SetDefault("redis.url", d.Redis.URL)
	v.SetDefault("redis.max_conns", d.Redis.MaxConns)
	v.SetDefault("redis.operation_timeout", d.Redis.OperationTimeout)

	v.SetDefault("locks.backend", d.Locks.Backend)
	v.SetDefault("locks.acquire_timeout", d.Locks.AcquireTimeout)
	v.SetDefault("locks.retry_interval", d.Locks.RetryInterval)
	v.SetDefault("locks.ttl", d.Locks.TTL)
	v.SetDefault("locks.prefix", d.Locks.Prefix)
	v.SetDefault("locks.postgres.url", d.Locks.Postgres.URL)
	v.SetDefault("locks.postgres.table", d.Locks.Postgres.Table)
	v.SetDefault("locks.postgres.operation_timeout", d.Locks.Postgres.OperationTimeout)

	v.SetDefault("cache.backend", d.Cache.Backend)
	v.SetDefault("cache.prefix", d.Cache.Prefix)

	v.SetDefault("flags.backend", d.Flags.Backend)
	v.SetDefault("flags.prefix", d.Flags.Prefix)
	v.SetDefault("flags.default_ttl", d.Flags.DefaultTTL)

	v.SetDefault("publisher.type", d.Publisher.Type)
	v.SetDefault("publisher.topic", d.Publisher.Topic)
	v.SetDefault("publisher.mqtt.broker_url", d.Publisher.MQTT.BrokerURL)
	v.SetDefault("publisher.mqtt.client_id", d.Publisher.MQTT.ClientID)
	v.SetDefault("publisher.mqtt.username", d.Publisher.MQTT.Username)
	v.SetDefault("publisher.mqtt.password", d.Publisher.MQTT.Password)
	v.SetDefault("publisher.mqtt.qos", d.Publisher.MQTT.QoS)
	v.SetDefault("publisher.mqtt.retained", d.Publisher.MQTT.Retained)
	v.SetDefault("publisher.mqtt.connect_timeout", d.Publisher.MQTT.ConnectTimeout)
	v.SetDefault("publisher.rabbitmq.url", d.Publisher.RabbitMQ.URL)
	v.SetDefault("publisher.rabbitmq.exchange", d.Publisher.RabbitMQ.Exchange)
	v.SetDefault("publisher.rabbitmq.routing_key", d.Publisher.RabbitMQ.RoutingKey)
	v.SetDefault("publisher.rabbitmq.operation_timeout", d.Publisher.RabbitMQ.OperationTimeout)

	v.SetDefault("management.enabled", d.Management.Enabled)
	v.SetDefault("management.port", d.Management.Port)
	v.SetDefault("management.read_timeout", d.Management.ReadTimeout)
	v.SetDefault("management.write_timeout", d.Management.WriteTimeout)

	v.SetDefault("observability.log_level", d.Observability.LogLevel)
	v.SetDefault("observability.log_format", d.Observability.LogFormat)
}

// bindEnvVars explicitly binds environment variables for nested structs
func (l *ViperLoader) bindEnvVars(v *viper.Viper) {
	v.BindEnv("service.name", l.prefixedEnv("SERVICE_NAME"))
	v.BindEnv("service.environment", l.prefixedEnv("SERVICE_ENVIRONMENT"), l.prefixedEnv("ENVIRONMENT"))

	v.BindEnv("device.host", l.prefixedEnv("DEVICE_HOST"))
	v.BindEnv("device.port", l.prefixedEnv("DEVICE_PORT"))
	v.BindEnv("device.serial", l.prefixedEnv("DEVICE_SERIAL"))
	v.BindEnv("device.poll_interval", l.prefixedEnv("DEVICE_POLL_INTERVAL"))
	v.BindEnv("device.full_refresh_every", l.prefixedEnv("DEVICE_FULL_REFRESH_EVERY"))
	v.BindEnv("device.command_queue_size", l.prefixedEnv("DEVICE_COMMAND_QUEUE_SIZE"))

	v.BindEnv("redis.url", l.prefixedEnv("REDIS_URL"))
	v.BindEnv("redis.max_conns", l.prefixedEnv("REDIS_MAX_CONNS"))
	v.BindEnv("redis.operation_timeout", l.prefixedEnv("REDIS_OPERATION_TIMEOUT"))

	v.BindEnv("locks.backend", l.prefixedEnv("LOCKS_BACKEND"))
	v.BindEnv("locks.acquire_timeout", l.prefixedEnv("LOCKS_ACQUIRE_TIMEOUT"))
	v.BindEnv("locks.retry_interval", l.prefixedEnv("LOCKS_RETRY_INTERVAL"))
	v.BindEnv("locks.ttl", l.prefixedEnv("LOCKS_TTL"))
	v.BindEnv("locks.prefix", l.prefixedEnv("LOCKS_PREFIX"))
	v.BindEnv("locks.postgres.url", l.prefixedEnv("LOCKS_POSTGRES_URL"))
	v.BindEnv("locks.postgres.table", l.prefixedEnv("LOCKS_POSTGRES_TABLE"))
	v.BindEnv("locks.postgres.operation_timeout", l.prefixedEnv("LOCKS_POSTGRES_OPERATION_TIMEOUT"))

	v.BindEnv("cache.backend", l.prefixedEnv("CACHE_BACKEND"))
	v.BindEnv("cache.prefix", l.prefixedEnv("CACHE_PREFIX"))

	v.BindEnv("flags.backend", l.prefixedEnv("FLAGS_BACKEND"))
	v.BindEnv("flags.prefix", l.prefixedEnv("FLAGS_PREFIX"))
	v.BindEnv("flags.default_ttl", l.prefixedEnv("FLAGS_DEFAULT_TTL"))

	v.BindEnv("publisher.type", l.prefixedEnv("PUBLISHER_TYPE"))
	v.BindEnv("publisher.topic", l.prefixedEnv("PUBLISHER_TOPIC"))
	v.BindEnv("publisher.mqtt.broker_url", l.prefixedEnv("PUBLISHER_MQTT_BROKER_URL"))
	v.BindEnv("publisher.mqtt.client_id", l.prefixedEnv("PUBLISHER_MQTT_CLIENT_ID"))
	v.BindEnv("publisher.mqtt.username", l.prefixedEnv("PUBLISHER_MQTT_USERNAME"))
	v.BindEnv("publisher.mqtt.password", l.prefixedEnv("PUBLISHER_MQTT_PASSWORD"))
	v.BindEnv("publisher.mqtt.qos", l.prefixedEnv("PUBLISHER_MQTT_QOS"))
	v.BindEnv("publisher.mqtt.retained", l.prefixedEnv("PUBLISHER_MQTT_RETAINED"))
	v.BindEnv("publisher.mqtt.connect_timeout", l.prefixedEnv("PUBLISHER_MQTT_CONNECT_TIMEOUT"))
	v.BindEnv("publisher.rabbitmq.url", l.prefixedEnv("PUBLISHER_RABBITMQ_URL"))
	v.BindEnv("publisher.rabbitmq.exchange", l.prefixedEnv("PUBLISHER_RABBITMQ_EXCHANGE"))
	v.BindEnv("publisher.rabbitmq.routing_key", l.prefixedEnv("PUBLISHER_RABBITMQ_ROUTING_KEY"))
	v.BindEnv("publisher.rabbitmq.operation_timeout", l.prefixedEnv("PUBLISHER_RABBITMQ_OPERATION_TIMEOUT"))

	v.BindEnv("management.enabled", l.prefixedEnv("MGMT_ENABLED"))
	v.BindEnv("management.port", l.prefixedEnv("MGMT_PORT"))
	v.BindEnv("management.read_timeout", l.prefixedEnv("MGMT_READ_TIMEOUT"))
	v.BindEnv("management.write_timeout", l.prefixedEnv("MGMT_WRITE_TIMEOUT"))

	v.BindEnv("observability.log_level", l.prefixedEnv("LOG_LEVEL"))
	v.BindEnv("observability.log_format", l.prefixedEnv("LOG_FORMAT"))
}

func (l *ViperLoader) prefixedEnv(name string) string {
	prefix := strings.TrimSpace(l.envPrefix)
	if prefix == "" {
		return name
	}
	return prefix + "_" + name
}
