package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voltlock/voltlock/pkg/observability/logger"
)

const (
	defaultRedisCachePrefix    = "voltlock:cache"
	defaultRedisCacheOpTimeout = 3 * time.Second
)

// RedisRepositoryConfig configures the Redis cache backend.
type RedisRepositoryConfig struct {
	URL              string
	Prefix           string
	MaxConns         int
	OperationTimeout time.Duration
}

func (c *RedisRepositoryConfig) normalize() {
	if strings.TrimSpace(c.Prefix) == "" {
		c.Prefix = defaultRedisCachePrefix
	}
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = defaultRedisCacheOpTimeout
	}
}

// RedisRepository stores envelopes under a key prefix. SET and DEL are atomic
// on the server, so no per-key lock is needed here.
type RedisRepository struct {
	client *redis.Client
	log    logger.Logger
	config RedisRepositoryConfig
}

// NewRedisRepository creates a Redis-backed cache and verifies connectivity.
func NewRedisRepository(cfg RedisRepositoryConfig, log logger.Logger) (*RedisRepository, error) {
	if log == nil {
		return nil, cacheError(ErrInvalidArgument, "logger is required")
	}
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, cacheError(ErrInvalidArgument, "redis url is required")
	}
	cfg.normalize()

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, errors.Join(cacheError(ErrInvalidArgument, "parse redis url failed"), err)
	}
	if cfg.MaxConns > 0 {
		opts.PoolSize = cfg.MaxConns
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.OperationTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Join(cacheError(ErrBackendUnavailable, "ping redis failed"), err)
	}

	return &RedisRepository{
		client: client,
		log:    log,
		config: cfg,
	}, nil
}

// newRedisRepositoryWithClient wires an existing client, for tests.
func newRedisRepositoryWithClient(client *redis.Client, cfg RedisRepositoryConfig, log logger.Logger) *RedisRepository {
	cfg.normalize()
	return &RedisRepository{
		client: client,
		log:    log,
		config: cfg,
	}
}

// Get returns the decoded payload for key. A corrupted entry is deleted and
// reads as absent.
func (r *RedisRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if r == nil || r.client == nil {
		return nil, false, cacheError(ErrNotInitialized, "redis cache is not initialized")
	}
	key, err := validKey(key)
	if err != nil {
		return nil, false, err
	}

	opCtx, cancel := r.operationContext(ctx)
	defer cancel()
	raw, err := r.client.Get(opCtx, r.fullKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		recordCacheOperation("get", "miss")
		return nil, false, nil
	}
	if err != nil {
		recordCacheOperation("get", "error")
		return nil, false, errors.Join(cacheError(ErrBackendUnavailable, "get cache entry failed for "+key), err)
	}

	payload, ok := decodeEnvelope(raw)
	if !ok {
		recordCacheCorrupted()
		r.log.Warn("corrupted cache entry dropped", "key", key)
		_ = r.client.Del(opCtx, r.fullKey(key)).Err()
		recordCacheOperation("get", "corrupted")
		return nil, false, nil
	}
	recordCacheOperation("get", "hit")
	return payload, true, nil
}

// Set stores the payload under key.
func (r *RedisRepository) Set(ctx context.Context, key string, value []byte) error {
	if r == nil || r.client == nil {
		return cacheError(ErrNotInitialized, "redis cache is not initialized")
	}
	key, err := validKey(key)
	if err != nil {
		return err
	}

	raw, err := encodeEnvelope(value)
	if err != nil {
		recordCacheOperation("set", "error")
		return errors.Join(cacheError(ErrInvalidArgument, "encode cache entry failed for "+key), err)
	}

	opCtx, cancel := r.operationContext(ctx)
	defer cancel()
	if err := r.client.Set(opCtx, r.fullKey(key), raw, 0).Err(); err != nil {
		recordCacheOperation("set", "error")
		return errors.Join(cacheError(ErrBackendUnavailable, "set cache entry failed for "+key), err)
	}
	recordCacheOperation("set", "ok")
	return nil
}

// Invalidate removes the entry for key.
func (r *RedisRepository) Invalidate(ctx context.Context, key string) error {
	if r == nil || r.client == nil {
		return cacheError(ErrNotInitialized, "redis cache is not initialized")
	}
	key, err := validKey(key)
	if err != nil {
		return err
	}

	opCtx, cancel := r.operationContext(ctx)
	defer cancel()
	if err := r.client.Del(opCtx, r.fullKey(key)).Err(); err != nil {
		recordCacheOperation("invalidate", "error")
		return errors.Join(cacheError(ErrBackendUnavailable, "delete cache entry failed for "+key), err)
	}
	recordCacheOperation("invalidate", "ok")
	return nil
}

// HealthCheck verifies Redis connectivity.
func (r *RedisRepository) HealthCheck(ctx context.Context) error {
	if r == nil || r.client == nil {
		return cacheError(ErrNotInitialized, "redis cache is not initialized")
	}
	opCtx, cancel := r.operationContext(ctx)
	defer cancel()
	if err := r.client.Ping(opCtx).Err(); err != nil {
		return errors.Join(cacheError(ErrBackendUnavailable, "redis healthcheck failed"), err)
	}
	return nil
}

// Close closes Redis client connections.
func (r *RedisRepository) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

func (r *RedisRepository) fullKey(key string) string {
	return strings.TrimRight(r.config.Prefix, ":") + ":" + key
}

func (r *RedisRepository) operationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, r.config.OperationTimeout)
}
