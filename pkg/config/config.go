package config

import "time"

// Lock backend type constants
const (
	// LockBackendMemory uses in-process reentrant locks
	LockBackendMemory = "memory"
	// LockBackendRedis uses Redis for distributed locks
	LockBackendRedis = "redis"
	// LockBackendPostgres uses PostgreSQL rows for distributed locks
	LockBackendPostgres = "postgres"
)

// Cache backend type constants
const (
	// CacheBackendMemory uses an in-process map guarded by the lock registry
	CacheBackendMemory = "memory"
	// CacheBackendRedis uses Redis as shared cache storage
	CacheBackendRedis = "redis"
)

// Status flag backend type constants
const (
	// FlagBackendMemory uses in-process flags with lazy expiry
	FlagBackendMemory = "memory"
	// FlagBackendRedis uses Redis keys with native TTL expiry
	FlagBackendRedis = "redis"
)

// Publisher type constants
const (
	// PublisherNone disables publishing
	PublisherNone = "none"
	// PublisherMQTT publishes readings to an MQTT broker
	PublisherMQTT = "mqtt"
	// PublisherRabbitMQ publishes readings to a RabbitMQ exchange
	PublisherRabbitMQ = "rabbitmq"
)

// Config is the root configuration structure for the service
type Config struct {
	Service       ServiceConfig
	Device        DeviceConfig
	Redis         RedisConfig
	Locks         LocksConfig
	Cache         CacheConfig
	Flags         FlagsConfig
	Publisher     PublisherConfig
	Management    ManagementConfig
	Observability ObservabilityConfig
}

// ServiceConfig configures service identity metadata.
type ServiceConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DeviceConfig configures the inverter transport and the polling loop.
type DeviceConfig struct {
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	Serial           string        `mapstructure:"serial"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	FullRefreshEvery int           `mapstructure:"full_refresh_every"`
	CommandQueueSize int           `mapstructure:"command_queue_size"`
}

// RedisConfig is the shared connection configuration consumed by every
// Redis-backed coordination component. Key prefixes are per-subsystem.
type RedisConfig struct {
	URL              string        `mapstructure:"url"`
	MaxConns         int           `mapstructure:"max_conns"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
}

// LocksConfig selects and tunes the lock manager backend.
type LocksConfig struct {
	Backend        string              `mapstructure:"backend"`
	AcquireTimeout time.Duration       `mapstructure:"acquire_timeout"`
	RetryInterval  time.Duration       `mapstructure:"retry_interval"`
	TTL            time.Duration       `mapstructure:"ttl"`
	Prefix         string              `mapstructure:"prefix"`
	Postgres       PostgresLocksConfig `mapstructure:"postgres"`
}

// PostgresLocksConfig configures the PostgreSQL lock backend.
type PostgresLocksConfig struct {
	URL              string        `mapstructure:"url"`
	Table            string        `mapstructure:"table"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
}

// CacheConfig selects and tunes the cache repository backend.
type CacheConfig struct {
	Backend string `mapstructure:"backend"`
	Prefix  string `mapstructure:"prefix"`
}

// FlagsConfig selects and tunes the status flag store backend.
type FlagsConfig struct {
	Backend    string        `mapstructure:"backend"`
	Prefix     string        `mapstructure:"prefix"`
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
}

// PublisherConfig selects the reading publisher backend.
type PublisherConfig struct {
	Type     string         `mapstructure:"type"`
	Topic    string         `mapstructure:"topic"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
}

// MQTTConfig configures the MQTT publisher.
type MQTTConfig struct {
	BrokerURL      string        `mapstructure:"broker_url"`
	ClientID       string        `mapstructure:"client_id"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	QoS            int           `mapstructure:"qos"`
	Retained       bool          `mapstructure:"retained"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// RabbitMQConfig configures the RabbitMQ publisher.
type RabbitMQConfig struct {
	URL              string        `mapstructure:"url"`
	Exchange         string        `mapstructure:"exchange"`
	RoutingKey       string        `mapstructure:"routing_key"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
}

// ManagementConfig configures the management HTTP server
type ManagementConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// ObservabilityConfig configures logging.
type ObservabilityConfig struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// DefaultConfig returns the built-in defaults. Timeout and TTL defaults sit in
// the tens-of-seconds range so a crashed holder never wedges a resource for
// longer than one poll generation.
func DefaultConfig() Config {
	return Config{
		Service: ServiceConfig{
			Name:        "voltlock",
			Environment: "development",
		},
		Device: DeviceConfig{
			Host:             "",
			Port:             8899,
			PollInterval:     10 * time.Second,
			FullRefreshEvery: 30,
			CommandQueueSize: 16,
		},
		Redis: RedisConfig{
			URL:              "redis://localhost:6379/0",
			MaxConns:         10,
			OperationTimeout: 3 * time.Second,
		},
		Locks: LocksConfig{
			Backend:        LockBackendMemory,
			AcquireTimeout: 30 * time.Second,
			RetryInterval:  100 * time.Millisecond,
			TTL:            30 * time.Second,
			Prefix:         "voltlock:lock",
			Postgres: PostgresLocksConfig{
				Table:            "voltlock_locks",
				OperationTimeout: 3 * time.Second,
			},
		},
		Cache: CacheConfig{
			Backend: CacheBackendMemory,
			Prefix:  "voltlock:cache",
		},
		Flags: FlagsConfig{
			Backend:    FlagBackendMemory,
			Prefix:     "voltlock:status",
			DefaultTTL: time.Hour,
		},
		Publisher: PublisherConfig{
			Type:  PublisherNone,
			Topic: "voltlock/readings",
			MQTT: MQTTConfig{
				ClientID:       "voltlock",
				QoS:            1,
				Retained:       true,
				ConnectTimeout: 10 * time.Second,
			},
			RabbitMQ: RabbitMQConfig{
				Exchange:         "voltlock.readings",
				RoutingKey:       "reading.latest",
				OperationTimeout: 10 * time.Second,
			},
		},
		Management: ManagementConfig{
			Enabled:      true,
			Port:         9090,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}
