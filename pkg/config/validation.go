package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks configuration invariants that must hold before startup.
// It collects all violations so operators see every problem at once.
func (l *ViperLoader) Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	var problems []error

	if strings.TrimSpace(cfg.Service.Name) == "" {
		problems = append(problems, errors.New("service.name is required"))
	}

	switch cfg.Locks.Backend {
	case LockBackendMemory, LockBackendRedis, LockBackendPostgres:
	default:
		problems = append(problems, fmt.Errorf("locks.backend %q is invalid (supported: memory, redis, postgres)", cfg.Locks.Backend))
	}
	if cfg.Locks.AcquireTimeout < 0 {
		problems = append(problems, errors.New("locks.acquire_timeout cannot be negative"))
	}
	if cfg.Locks.RetryInterval <= 0 {
		problems = append(problems, errors.New("locks.retry_interval must be greater than zero"))
	}
	if cfg.Locks.Backend != LockBackendMemory && cfg.Locks.TTL <= 0 {
		problems = append(problems, errors.New("locks.ttl must be greater than zero for distributed backends"))
	}
	if cfg.Locks.Backend == LockBackendRedis && strings.TrimSpace(cfg.Redis.URL) == "" {
		problems = append(problems, errors.New("redis.url is required when locks.backend is redis"))
	}
	if cfg.Locks.Backend == LockBackendPostgres && strings.TrimSpace(cfg.Locks.Postgres.URL) == "" {
		problems = append(problems, errors.New("locks.postgres.url is required when locks.backend is postgres"))
	}

	switch cfg.Cache.Backend {
	case CacheBackendMemory, CacheBackendRedis:
	default:
		problems = append(problems, fmt.Errorf("cache.backend %q is invalid (supported: memory, redis)", cfg.Cache.Backend))
	}
	if cfg.Cache.Backend == CacheBackendRedis && strings.TrimSpace(cfg.Redis.URL) == "" {
		problems = append(problems, errors.New("redis.url is required when cache.backend is redis"))
	}

	switch cfg.Flags.Backend {
	case FlagBackendMemory, FlagBackendRedis:
	default:
		problems = append(problems, fmt.Errorf("flags.backend %q is invalid (supported: memory, redis)", cfg.Flags.Backend))
	}
	if cfg.Flags.DefaultTTL <= 0 {
		problems = append(problems, errors.New("flags.default_ttl must be greater than zero"))
	}
	if cfg.Flags.Backend == FlagBackendRedis && strings.TrimSpace(cfg.Redis.URL) == "" {
		problems = append(problems, errors.New("redis.url is required when flags.backend is redis"))
	}

	switch cfg.Publisher.Type {
	case PublisherNone, PublisherMQTT, PublisherRabbitMQ:
	default:
		problems = append(problems, fmt.Errorf("publisher.type %q is invalid (supported: none, mqtt, rabbitmq)", cfg.Publisher.Type))
	}
	if cfg.Publisher.Type == PublisherMQTT && strings.TrimSpace(cfg.Publisher.MQTT.BrokerURL) == "" {
		problems = append(problems, errors.New("publisher.mqtt.broker_url is required when publisher.type is mqtt"))
	}
	if cfg.Publisher.Type == PublisherRabbitMQ && strings.TrimSpace(cfg.Publisher.RabbitMQ.URL) == "" {
		problems = append(problems, errors.New("publisher.rabbitmq.url is required when publisher.type is rabbitmq"))
	}

	if cfg.Device.PollInterval <= 0 {
		problems = append(problems, errors.New("device.poll_interval must be greater than zero"))
	}
	if cfg.Device.FullRefreshEvery <= 0 {
		problems = append(problems, errors.New("device.full_refresh_every must be greater than zero"))
	}

	if cfg.Management.Enabled && (cfg.Management.Port < 1 || cfg.Management.Port > 65535) {
		problems = append(problems, fmt.Errorf("management.port %d is out of range", cfg.Management.Port))
	}

	return errors.Join(problems...)
}
