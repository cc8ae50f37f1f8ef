package cache

import (
	"context"
	"testing"
	"time"

	"github.com/voltlock/voltlock/pkg/config"
	"github.com/voltlock/voltlock/pkg/locking"
)

func TestNewRepositoryMemoryBackend(t *testing.T) {
	locks, err := locking.NewInProcessManager(locking.InProcessManagerConfig{RetryInterval: 2 * time.Millisecond}, &cacheTestLogger{})
	if err != nil {
		t.Fatalf("NewInProcessManager failed: %v", err)
	}

	repo, err := NewRepository(config.CacheConfig{Backend: config.CacheBackendMemory}, config.RedisConfig{}, locks, &cacheTestLogger{})
	if err != nil {
		t.Fatalf("NewRepository failed: %v", err)
	}
	defer repo.Close()

	if _, ok := repo.(*MemoryRepository); !ok {
		t.Fatalf("expected *MemoryRepository, got %T", repo)
	}

	if err := repo.Set(context.Background(), KeyLatestReading, []byte("x")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
}

func TestNewRepositoryUnsupportedBackend(t *testing.T) {
	if _, err := NewRepository(config.CacheConfig{Backend: "memcached"}, config.RedisConfig{}, nil, &cacheTestLogger{}); err == nil {
		t.Fatal("expected error for unsupported backend")
	}
}
