package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/voltlock/voltlock/pkg/locking"
	"github.com/voltlock/voltlock/pkg/observability/logger"
)

const defaultMemoryLockTimeout = 5 * time.Second

// MemoryRepositoryConfig configures the in-process cache backend.
type MemoryRepositoryConfig struct {
	// LockTimeout bounds how long a write waits for the per-key lock.
	LockTimeout time.Duration
}

func (c *MemoryRepositoryConfig) normalize() {
	if c.LockTimeout <= 0 {
		c.LockTimeout = defaultMemoryLockTimeout
	}
}

// MemoryRepository keeps envelopes in a map. Writes serialize through the
// lock manager on a per-key derived resource, so read-modify-write sequences
// built on top of the repository stay race-free. Readers only ever observe a
// whole envelope: entries are swapped under the mutex, never mutated in
// place.
type MemoryRepository struct {
	locks  locking.Manager
	log    logger.Logger
	config MemoryRepositoryConfig

	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemoryRepository creates an in-process cache guarded by locks.
func NewMemoryRepository(cfg MemoryRepositoryConfig, locks locking.Manager, log logger.Logger) (*MemoryRepository, error) {
	if locks == nil {
		return nil, cacheError(ErrInvalidArgument, "lock manager is required")
	}
	if log == nil {
		return nil, cacheError(ErrInvalidArgument, "logger is required")
	}
	cfg.normalize()
	return &MemoryRepository{
		locks:   locks,
		log:     log,
		config:  cfg,
		entries: make(map[string][]byte),
	}, nil
}

// Get returns the decoded payload for key. Corrupted entries are dropped and
// read as absent.
func (r *MemoryRepository) Get(_ context.Context, key string) ([]byte, bool, error) {
	if r == nil || r.entries == nil {
		return nil, false, cacheError(ErrNotInitialized, "memory cache is not initialized")
	}
	key, err := validKey(key)
	if err != nil {
		return nil, false, err
	}

	r.mu.RLock()
	raw, ok := r.entries[key]
	r.mu.RUnlock()
	if !ok {
		recordCacheOperation("get", "miss")
		return nil, false, nil
	}

	payload, ok := decodeEnvelope(raw)
	if !ok {
		recordCacheCorrupted()
		r.log.Warn("corrupted cache entry dropped", "key", key)
		r.dropEntry(key)
		recordCacheOperation("get", "corrupted")
		return nil, false, nil
	}
	recordCacheOperation("get", "hit")
	return payload, true, nil
}

// Set stores the payload under key, serialized through the per-key lock.
func (r *MemoryRepository) Set(ctx context.Context, key string, value []byte) error {
	if r == nil || r.entries == nil {
		return cacheError(ErrNotInitialized, "memory cache is not initialized")
	}
	key, err := validKey(key)
	if err != nil {
		return err
	}

	guard, err := r.locks.Acquire(ctx, lockResource(key), r.config.LockTimeout)
	if err != nil {
		recordCacheOperation("set", "error")
		return errors.Join(cacheError(ErrBackendUnavailable, "acquire cache lock failed for "+key), err)
	}
	defer guard.Release(ctx)

	raw, err := encodeEnvelope(value)
	if err != nil {
		recordCacheOperation("set", "error")
		return errors.Join(cacheError(ErrInvalidArgument, "encode cache entry failed for "+key), err)
	}

	r.mu.Lock()
	r.entries[key] = raw
	r.mu.Unlock()

	recordCacheOperation("set", "ok")
	return nil
}

// Invalidate removes the entry for key.
func (r *MemoryRepository) Invalidate(ctx context.Context, key string) error {
	if r == nil || r.entries == nil {
		return cacheError(ErrNotInitialized, "memory cache is not initialized")
	}
	key, err := validKey(key)
	if err != nil {
		return err
	}

	guard, err := r.locks.Acquire(ctx, lockResource(key), r.config.LockTimeout)
	if err != nil {
		recordCacheOperation("invalidate", "error")
		return errors.Join(cacheError(ErrBackendUnavailable, "acquire cache lock failed for "+key), err)
	}
	defer guard.Release(ctx)

	r.dropEntry(key)
	recordCacheOperation("invalidate", "ok")
	return nil
}

// HealthCheck reports healthy while the map exists.
func (r *MemoryRepository) HealthCheck(context.Context) error {
	if r == nil || r.entries == nil {
		return cacheError(ErrNotInitialized, "memory cache is not initialized")
	}
	return nil
}

// Close discards all entries.
func (r *MemoryRepository) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	r.entries = make(map[string][]byte)
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) dropEntry(key string) {
	r.mu.Lock()
	delete(r.entries, key)
	r.mu.Unlock()
}

// lockResource derives the lock registry resource name for a cache key.
func lockResource(key string) string {
	return "cache:" + key
}

func validKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", cacheError(ErrInvalidArgument, "cache key is required")
	}
	return key, nil
}
