package locking

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRedisManagerConfigNormalize(t *testing.T) {
	cfg := &RedisManagerConfig{}
	cfg.normalize()

	if cfg.Prefix != "voltlock:lock" {
		t.Errorf("expected default prefix, got %s", cfg.Prefix)
	}
	if cfg.TTL != 30*time.Second {
		t.Errorf("expected default ttl, got %v", cfg.TTL)
	}
	if cfg.RetryInterval != 100*time.Millisecond {
		t.Errorf("expected default retry interval, got %v", cfg.RetryInterval)
	}
	if cfg.OperationTimeout != 3*time.Second {
		t.Errorf("expected default operation timeout, got %v", cfg.OperationTimeout)
	}
}

func TestRedisManagerConfigNormalizeCustom(t *testing.T) {
	cfg := &RedisManagerConfig{
		Prefix:           "custom:",
		TTL:              time.Minute,
		RetryInterval:    time.Second,
		OperationTimeout: 10 * time.Second,
	}
	cfg.normalize()

	if cfg.Prefix != "custom:" {
		t.Errorf("expected custom prefix, got %s", cfg.Prefix)
	}
	if cfg.TTL != time.Minute {
		t.Errorf("expected custom ttl, got %v", cfg.TTL)
	}
	if cfg.RetryInterval != time.Second {
		t.Errorf("expected custom retry interval, got %v", cfg.RetryInterval)
	}
	if cfg.OperationTimeout != 10*time.Second {
		t.Errorf("expected custom operation timeout, got %v", cfg.OperationTimeout)
	}
}

func TestNewRedisManagerValidation(t *testing.T) {
	if _, err := NewRedisManager(RedisManagerConfig{URL: "redis://localhost:6379"}, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument without logger, got %v", err)
	}
	if _, err := NewRedisManager(RedisManagerConfig{}, &lockTestLogger{}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument without url, got %v", err)
	}
	if _, err := NewRedisManager(RedisManagerConfig{URL: "://broken"}, &lockTestLogger{}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for malformed url, got %v", err)
	}
}

func TestRedisManagerUninitialized(t *testing.T) {
	var m *RedisManager

	if _, err := m.Acquire(context.Background(), "inverter_read", time.Second); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized from Acquire, got %v", err)
	}
	if _, err := m.IsLocked(context.Background(), "inverter_read"); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized from IsLocked, got %v", err)
	}
	if err := m.HealthCheck(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized from HealthCheck, got %v", err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("Close on nil manager must be a no-op, got %v", err)
	}
}

func TestRedisManagerFullKey(t *testing.T) {
	m := newRedisManagerWithClient(nil, RedisManagerConfig{Prefix: "voltlock:lock:"}, &lockTestLogger{})

	if got := m.fullKey("inverter_read"); got != "voltlock:lock:inverter_read" {
		t.Errorf("unexpected key %s", got)
	}

	m = newRedisManagerWithClient(nil, RedisManagerConfig{}, &lockTestLogger{})
	if got := m.fullKey("inverter_write"); got != "voltlock:lock:inverter_write" {
		t.Errorf("unexpected key %s", got)
	}
}
