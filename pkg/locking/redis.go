package locking

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/voltlock/voltlock/pkg/observability/logger"
)

const (
	defaultRedisPrefix           = "voltlock:lock"
	defaultRedisOperationTimeout = 3 * time.Second
	defaultRedisTTL              = 30 * time.Second
	defaultRedisRetryInterval    = 100 * time.Millisecond
)

// releaseScript deletes the lock key only while it still stores the caller's
// token. Compare and delete must be one server-side step; a client-side
// get-then-delete would reintroduce the race this layer exists to remove.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisManagerConfig configures distributed locks backed by Redis.
type RedisManagerConfig struct {
	URL              string
	Prefix           string
	TTL              time.Duration
	RetryInterval    time.Duration
	MaxConns         int
	OperationTimeout time.Duration
}

func (c *RedisManagerConfig) normalize() {
	if strings.TrimSpace(c.Prefix) == "" {
		c.Prefix = defaultRedisPrefix
	}
	if c.TTL <= 0 {
		c.TTL = defaultRedisTTL
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = defaultRedisRetryInterval
	}
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = defaultRedisOperationTimeout
	}
}

// RedisManager is a distributed lock manager using Redis SET NX PX semantics.
// Every acquisition stores a fresh UUID token as sole proof of ownership; the
// mandatory TTL bounds how long a lock survives an abrupt holder failure.
type RedisManager struct {
	client *redis.Client
	log    logger.Logger
	config RedisManagerConfig
}

// NewRedisManager creates a Redis-based lock manager and verifies
// connectivity. An unreachable store fails fast with ErrBackendUnavailable;
// the caller decides whether to retry startup.
func NewRedisManager(cfg RedisManagerConfig, log logger.Logger) (*RedisManager, error) {
	if log == nil {
		return nil, lockError(ErrInvalidArgument, "logger is required")
	}
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, lockError(ErrInvalidArgument, "redis url is required")
	}
	cfg.normalize()

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, errors.Join(lockError(ErrInvalidArgument, "parse redis url failed"), err)
	}
	if cfg.MaxConns > 0 {
		opts.PoolSize = cfg.MaxConns
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.OperationTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Join(lockError(ErrBackendUnavailable, "ping redis failed"), err)
	}

	return &RedisManager{
		client: client,
		log:    log,
		config: cfg,
	}, nil
}

// newRedisManagerWithClient wires an existing client, for tests.
func newRedisManagerWithClient(client *redis.Client, cfg RedisManagerConfig, log logger.Logger) *RedisManager {
	cfg.normalize()
	return &RedisManager{
		client: client,
		log:    log,
		config: cfg,
	}
}

// Acquire polls SET NX PX with backoff until the key is created or timeout
// elapses. The stored token proves ownership at release time.
func (m *RedisManager) Acquire(ctx context.Context, resource string, timeout time.Duration) (*Guard, error) {
	if m == nil || m.client == nil {
		return nil, lockError(ErrNotInitialized, "redis lock manager is not initialized")
	}
	resource, err := validResource(resource)
	if err != nil {
		return nil, err
	}
	if timeout < 0 {
		return nil, lockError(ErrInvalidArgument, "timeout cannot be negative")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	token := uuid.NewString()
	fullKey := m.fullKey(resource)
	start := time.Now()

	var deadline time.Time
	if timeout > 0 {
		deadline = start.Add(timeout)
	}

	for {
		acquired, err := m.setNX(ctx, fullKey, token)
		if err != nil {
			recordLockAcquire(resource, "error", time.Since(start))
			return nil, errors.Join(lockError(ErrBackendUnavailable, "acquire lock failed for "+resource), err)
		}
		if acquired {
			waited := time.Since(start)
			recordLockAcquire(resource, "acquired", waited)
			m.log.Debug("lock acquired", "resource", resource, "token", token, "waited", waited)
			return newGuard(resource, token, func(releaseCtx context.Context) error {
				return m.release(releaseCtx, resource, fullKey, token)
			}), nil
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			waited := time.Since(start)
			recordLockAcquire(resource, "timeout", waited)
			m.log.Warn("lock acquire timed out", "resource", resource, "timeout", timeout, "waited", waited)
			return nil, lockError(ErrAcquireTimeout, "resource "+resource)
		}

		select {
		case <-ctx.Done():
			recordLockAcquire(resource, "canceled", time.Since(start))
			return nil, errors.Join(lockError(ErrAcquireTimeout, "context ended waiting for "+resource), ctx.Err())
		case <-time.After(m.config.RetryInterval):
		}
	}
}

func (m *RedisManager) setNX(ctx context.Context, fullKey, token string) (bool, error) {
	opCtx, cancel := context.WithTimeout(ctx, m.config.OperationTimeout)
	defer cancel()
	return m.client.SetNX(opCtx, fullKey, token, m.config.TTL).Result()
}

// release runs the compare-token-then-delete script. A token mismatch means
// the lock expired and moved to a new holder: logged, counted, and a no-op
// for the caller, never deleting the new holder's lock.
func (m *RedisManager) release(ctx context.Context, resource, fullKey, token string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	opCtx, cancel := context.WithTimeout(ctx, m.config.OperationTimeout)
	defer cancel()

	result, err := releaseScript.Run(opCtx, m.client, []string{fullKey}, token).Int64()
	if err != nil {
		recordLockRelease(resource, "error")
		return errors.Join(lockError(ErrBackendUnavailable, "release lock failed for "+resource), err)
	}
	if result == 0 {
		recordLockRelease(resource, "stale")
		m.log.Warn("lock already expired or re-acquired, release skipped", "resource", resource, "token", token)
		return nil
	}

	recordLockRelease(resource, "released")
	m.log.Debug("lock released", "resource", resource, "token", token)
	return nil
}

// IsLocked reports whether the lock key currently exists.
func (m *RedisManager) IsLocked(ctx context.Context, resource string) (bool, error) {
	if m == nil || m.client == nil {
		return false, lockError(ErrNotInitialized, "redis lock manager is not initialized")
	}
	resource, err := validResource(resource)
	if err != nil {
		return false, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	opCtx, cancel := context.WithTimeout(ctx, m.config.OperationTimeout)
	defer cancel()
	count, err := m.client.Exists(opCtx, m.fullKey(resource)).Result()
	if err != nil {
		return false, errors.Join(lockError(ErrBackendUnavailable, "inspect lock failed for "+resource), err)
	}
	return count > 0, nil
}

// HealthCheck verifies Redis connectivity.
func (m *RedisManager) HealthCheck(ctx context.Context) error {
	if m == nil || m.client == nil {
		return lockError(ErrNotInitialized, "redis lock manager is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	opCtx, cancel := context.WithTimeout(ctx, m.config.OperationTimeout)
	defer cancel()
	if err := m.client.Ping(opCtx).Err(); err != nil {
		return errors.Join(lockError(ErrBackendUnavailable, "redis healthcheck failed"), err)
	}
	return nil
}

// Close closes Redis client connections.
func (m *RedisManager) Close() error {
	if m == nil || m.client == nil {
		return nil
	}
	return m.client.Close()
}

func (m *RedisManager) fullKey(resource string) string {
	return strings.TrimRight(m.config.Prefix, ":") + ":" + resource
}
