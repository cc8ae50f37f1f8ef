package locking

import (
	"context"
	"testing"
	"time"

	"github.com/voltlock/voltlock/pkg/config"
)

func TestNewManagerMemoryBackend(t *testing.T) {
	m, err := NewManager(config.LocksConfig{
		Backend:       config.LockBackendMemory,
		RetryInterval: 5 * time.Millisecond,
	}, config.RedisConfig{}, &lockTestLogger{})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer m.Close()

	if _, ok := m.(*InProcessManager); !ok {
		t.Fatalf("expected *InProcessManager, got %T", m)
	}

	guard, err := m.Acquire(context.Background(), "inverter_read", time.Second)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := guard.Release(context.Background()); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
}

func TestNewManagerBackendSelectionIsCaseInsensitive(t *testing.T) {
	m, err := NewManager(config.LocksConfig{Backend: " Memory "}, config.RedisConfig{}, &lockTestLogger{})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer m.Close()
}

func TestNewManagerUnsupportedBackend(t *testing.T) {
	if _, err := NewManager(config.LocksConfig{Backend: "zookeeper"}, config.RedisConfig{}, &lockTestLogger{}); err == nil {
		t.Fatal("expected error for unsupported backend")
	}
}
