package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	loader := NewViperLoader("", "VOLTLOCK_TEST")

	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Locks.Backend != LockBackendMemory {
		t.Errorf("expected default lock backend memory, got %s", cfg.Locks.Backend)
	}
	if cfg.Locks.AcquireTimeout != 30*time.Second {
		t.Errorf("expected default acquire timeout 30s, got %v", cfg.Locks.AcquireTimeout)
	}
	if cfg.Flags.DefaultTTL != time.Hour {
		t.Errorf("expected default flag TTL 1h, got %v", cfg.Flags.DefaultTTL)
	}
	if cfg.Device.PollInterval != 10*time.Second {
		t.Errorf("expected default poll interval 10s, got %v", cfg.Device.PollInterval)
	}
	if cfg.Publisher.Type != PublisherNone {
		t.Errorf("expected default publisher none, got %s", cfg.Publisher.Type)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
locks:
  backend: redis
  acquire_timeout: 5s
  ttl: 15s
cache:
  backend: redis
flags:
  backend: redis
redis:
  url: redis://cache.internal:6379/1
device:
  host: 192.168.1.20
  poll_interval: 2s
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := NewViperLoader(path, "VOLTLOCK_TEST").Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Locks.Backend != LockBackendRedis {
		t.Errorf("expected redis lock backend, got %s", cfg.Locks.Backend)
	}
	if cfg.Locks.AcquireTimeout != 5*time.Second {
		t.Errorf("expected 5s acquire timeout, got %v", cfg.Locks.AcquireTimeout)
	}
	if cfg.Redis.URL != "redis://cache.internal:6379/1" {
		t.Errorf("unexpected redis url %s", cfg.Redis.URL)
	}
	if cfg.Device.PollInterval != 2*time.Second {
		t.Errorf("expected 2s poll interval, got %v", cfg.Device.PollInterval)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("VOLTLOCK_TEST_LOCKS_BACKEND", "postgres")
	t.Setenv("VOLTLOCK_TEST_LOCKS_POSTGRES_URL", "postgres://locks.internal/voltlock?sslmode=disable")

	cfg, err := NewViperLoader("", "VOLTLOCK_TEST").Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Locks.Backend != LockBackendPostgres {
		t.Errorf("expected env override to postgres, got %s", cfg.Locks.Backend)
	}
	if cfg.Locks.Postgres.URL == "" {
		t.Error("expected postgres url from env")
	}
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	loader := NewViperLoader("", "VOLTLOCK_TEST")
	cfg := DefaultConfig()
	cfg.Locks.Backend = "zookeeper"

	if err := loader.Validate(&cfg); err == nil {
		t.Error("expected validation error for unknown lock backend")
	}
}

func TestValidateRequiresRedisURLForRedisBackends(t *testing.T) {
	loader := NewViperLoader("", "VOLTLOCK_TEST")
	cfg := DefaultConfig()
	cfg.Locks.Backend = LockBackendRedis
	cfg.Redis.URL = ""

	if err := loader.Validate(&cfg); err == nil {
		t.Error("expected validation error for missing redis url")
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	loader := NewViperLoader("", "VOLTLOCK_TEST")
	cfg := DefaultConfig()
	cfg.Service.Name = ""
	cfg.Device.PollInterval = 0
	cfg.Flags.DefaultTTL = 0

	err := loader.Validate(&cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	// errors.Join keeps every violation in the message.
	for _, want := range []string{"service.name", "poll_interval", "default_ttl"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected validation error to mention %q, got: %v", want, err)
		}
	}
}
