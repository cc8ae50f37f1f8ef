package status

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voltlock/voltlock/pkg/observability/logger"
)

const (
	defaultRedisFlagPrefix    = "voltlock:status"
	defaultRedisFlagOpTimeout = 3 * time.Second
)

// RedisStoreConfig configures the Redis flag backend.
type RedisStoreConfig struct {
	URL              string
	Prefix           string
	MaxConns         int
	OperationTimeout time.Duration
}

func (c *RedisStoreConfig) normalize() {
	if strings.TrimSpace(c.Prefix) == "" {
		c.Prefix = defaultRedisFlagPrefix
	}
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = defaultRedisFlagOpTimeout
	}
}

// RedisStore maps flags onto Redis keys with native TTL expiry, so flags
// survive process restarts and are shared across instances.
type RedisStore struct {
	client *redis.Client
	log    logger.Logger
	config RedisStoreConfig
}

// NewRedisStore creates a Redis-backed flag store and verifies connectivity.
func NewRedisStore(cfg RedisStoreConfig, log logger.Logger) (*RedisStore, error) {
	if log == nil {
		return nil, statusError(ErrInvalidArgument, "logger is required")
	}
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, statusError(ErrInvalidArgument, "redis url is required")
	}
	cfg.normalize()

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, errors.Join(statusError(ErrInvalidArgument, "parse redis url failed"), err)
	}
	if cfg.MaxConns > 0 {
		opts.PoolSize = cfg.MaxConns
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.OperationTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Join(statusError(ErrBackendUnavailable, "ping redis failed"), err)
	}

	return &RedisStore{
		client: client,
		log:    log,
		config: cfg,
	}, nil
}

// newRedisStoreWithClient wires an existing client, for tests.
func newRedisStoreWithClient(client *redis.Client, cfg RedisStoreConfig, log logger.Logger) *RedisStore {
	cfg.normalize()
	return &RedisStore{
		client: client,
		log:    log,
		config: cfg,
	}
}

// Set raises the flag with a server-side TTL.
func (s *RedisStore) Set(ctx context.Context, name string, ttl time.Duration) error {
	if s == nil || s.client == nil {
		return statusError(ErrNotInitialized, "redis flag store is not initialized")
	}
	name, err := validFlagName(name)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		return statusError(ErrInvalidArgument, "flag ttl must be positive")
	}

	opCtx, cancel := s.operationContext(ctx)
	defer cancel()
	if err := s.client.Set(opCtx, s.fullKey(name), "1", ttl).Err(); err != nil {
		return errors.Join(statusError(ErrBackendUnavailable, "set flag failed for "+name), err)
	}
	s.log.Debug("status flag set", "flag", name, "ttl", ttl)
	return nil
}

// Clear lowers the flag.
func (s *RedisStore) Clear(ctx context.Context, name string) error {
	if s == nil || s.client == nil {
		return statusError(ErrNotInitialized, "redis flag store is not initialized")
	}
	name, err := validFlagName(name)
	if err != nil {
		return err
	}

	opCtx, cancel := s.operationContext(ctx)
	defer cancel()
	if err := s.client.Del(opCtx, s.fullKey(name)).Err(); err != nil {
		return errors.Join(statusError(ErrBackendUnavailable, "clear flag failed for "+name), err)
	}
	s.log.Debug("status flag cleared", "flag", name)
	return nil
}

// IsSet reports whether the flag key exists. Expiry is Redis-native.
func (s *RedisStore) IsSet(ctx context.Context, name string) (bool, error) {
	if s == nil || s.client == nil {
		return false, statusError(ErrNotInitialized, "redis flag store is not initialized")
	}
	name, err := validFlagName(name)
	if err != nil {
		return false, err
	}

	opCtx, cancel := s.operationContext(ctx)
	defer cancel()
	count, err := s.client.Exists(opCtx, s.fullKey(name)).Result()
	if err != nil {
		return false, errors.Join(statusError(ErrBackendUnavailable, "inspect flag failed for "+name), err)
	}
	return count > 0, nil
}

// ClearAll removes every key under the flag prefix.
func (s *RedisStore) ClearAll(ctx context.Context) error {
	if s == nil || s.client == nil {
		return statusError(ErrNotInitialized, "redis flag store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	pattern := s.fullKey("*")
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return errors.Join(statusError(ErrBackendUnavailable, "scan flags failed"), err)
	}
	if len(keys) == 0 {
		return nil
	}

	opCtx, cancel := s.operationContext(ctx)
	defer cancel()
	if err := s.client.Del(opCtx, keys...).Err(); err != nil {
		return errors.Join(statusError(ErrBackendUnavailable, "clear flags failed"), err)
	}
	s.log.Info("status flags cleared at startup", "count", len(keys))
	return nil
}

// HealthCheck verifies Redis connectivity.
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	if s == nil || s.client == nil {
		return statusError(ErrNotInitialized, "redis flag store is not initialized")
	}
	opCtx, cancel := s.operationContext(ctx)
	defer cancel()
	if err := s.client.Ping(opCtx).Err(); err != nil {
		return errors.Join(statusError(ErrBackendUnavailable, "redis healthcheck failed"), err)
	}
	return nil
}

// Close closes Redis client connections.
func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *RedisStore) fullKey(name string) string {
	return strings.TrimRight(s.config.Prefix, ":") + ":" + name
}

func (s *RedisStore) operationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, s.config.OperationTimeout)
}
