package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/voltlock/voltlock/pkg/locking"
	"github.com/voltlock/voltlock/pkg/observability/logger"
)

type cacheTestLogger struct{}

func (l *cacheTestLogger) Debug(string, ...any) {}
func (l *cacheTestLogger) Info(string, ...any)  {}
func (l *cacheTestLogger) Warn(string, ...any)  {}
func (l *cacheTestLogger) Error(string, ...any) {}
func (l *cacheTestLogger) With(...any) logger.Logger {
	return l
}
func (l *cacheTestLogger) WithContext(context.Context) logger.Logger {
	return l
}

func newTestRepository(t *testing.T) *MemoryRepository {
	t.Helper()
	locks, err := locking.NewInProcessManager(locking.InProcessManagerConfig{RetryInterval: 2 * time.Millisecond}, &cacheTestLogger{})
	if err != nil {
		t.Fatalf("NewInProcessManager failed: %v", err)
	}
	repo, err := NewMemoryRepository(MemoryRepositoryConfig{}, locks, &cacheTestLogger{})
	if err != nil {
		t.Fatalf("NewMemoryRepository failed: %v", err)
	}
	return repo
}

func TestMemoryRepositoryRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	payload := []byte(`{"soc":57,"grid_power":-1200}`)
	if err := repo.Set(ctx, KeyLatestReading, payload); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok, err := repo.Get(ctx, KeyLatestReading)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("expected a hit after Set")
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload mutated in storage: got %s", got)
	}
}

func TestMemoryRepositoryMiss(t *testing.T) {
	repo := newTestRepository(t)

	got, ok, err := repo.Get(context.Background(), "reading:absent")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok || got != nil {
		t.Errorf("expected a miss, got %q", got)
	}
}

func TestMemoryRepositoryInvalidate(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	if err := repo.Set(ctx, KeyLatestReading, []byte("x")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := repo.Invalidate(ctx, KeyLatestReading); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if _, ok, _ := repo.Get(ctx, KeyLatestReading); ok {
		t.Error("expected entry gone after Invalidate")
	}

	// Invalidating a missing key is a no-op.
	if err := repo.Invalidate(ctx, "reading:absent"); err != nil {
		t.Errorf("Invalidate on missing key returned %v", err)
	}
}

func TestMemoryRepositoryCorruptedEntryReadsAbsent(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	// Plant a raw entry that is not a valid envelope.
	repo.mu.Lock()
	repo.entries[KeyLatestReading] = []byte("not-json")
	repo.mu.Unlock()

	got, ok, err := repo.Get(ctx, KeyLatestReading)
	if err != nil {
		t.Fatalf("corrupted entry must not surface an error, got %v", err)
	}
	if ok || got != nil {
		t.Errorf("corrupted entry must read as absent, got %q", got)
	}

	// The corrupted entry was dropped, not left to fail again.
	repo.mu.RLock()
	_, remains := repo.entries[KeyLatestReading]
	repo.mu.RUnlock()
	if remains {
		t.Error("corrupted entry should be dropped on read")
	}
}

func TestMemoryRepositoryRejectsBlankKey(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	if _, _, err := repo.Get(ctx, "  "); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument from Get, got %v", err)
	}
	if err := repo.Set(ctx, "", []byte("x")); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument from Set, got %v", err)
	}
}

func TestMemoryRepositoryConcurrentWriters(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			payload, _ := json.Marshal(map[string]int{"writer": n, "value": n * 100})
			if err := repo.Set(ctx, KeyLatestReading, payload); err != nil {
				t.Errorf("concurrent Set failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	// Whatever won, the stored value is one writer's whole payload.
	got, ok, err := repo.Get(ctx, KeyLatestReading)
	if err != nil || !ok {
		t.Fatalf("Get after concurrent writes failed: ok=%v err=%v", ok, err)
	}
	var decoded map[string]int
	if err := json.Unmarshal(got, &decoded); err != nil {
		t.Fatalf("stored value is not one writer's payload: %v", err)
	}
	if decoded["value"] != decoded["writer"]*100 {
		t.Errorf("interleaved write observed: %v", decoded)
	}
}

func TestHistoryStackBoundedDepth(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	history, err := NewHistoryStack(repo, repo.locks, KeyReadingHistory, 0)
	if err != nil {
		t.Fatalf("NewHistoryStack failed: %v", err)
	}
	if history.depth != DefaultHistoryDepth {
		t.Fatalf("expected default depth %d, got %d", DefaultHistoryDepth, history.depth)
	}

	for i := 0; i < 8; i++ {
		if err := history.Push(ctx, []byte(fmt.Sprintf("reading-%d", i))); err != nil {
			t.Fatalf("Push failed: %v", err)
		}
	}

	entries, err := history.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != DefaultHistoryDepth {
		t.Fatalf("expected %d entries, got %d", DefaultHistoryDepth, len(entries))
	}
	// Newest first; oldest pushes fell off.
	if string(entries[0]) != "reading-7" {
		t.Errorf("expected newest entry first, got %s", entries[0])
	}
	if string(entries[DefaultHistoryDepth-1]) != "reading-3" {
		t.Errorf("expected oldest retained entry reading-3, got %s", entries[DefaultHistoryDepth-1])
	}
}

func TestHistoryStackEmptyList(t *testing.T) {
	repo := newTestRepository(t)

	history, err := NewHistoryStack(repo, repo.locks, KeyReadingHistory, 3)
	if err != nil {
		t.Fatalf("NewHistoryStack failed: %v", err)
	}

	entries, err := history.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty history, got %d entries", len(entries))
	}
}

func TestHistoryStackConcurrentPushers(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	history, err := NewHistoryStack(repo, repo.locks, KeyReadingHistory, 10)
	if err != nil {
		t.Fatalf("NewHistoryStack failed: %v", err)
	}

	const pushers = 10
	var wg sync.WaitGroup
	for i := 0; i < pushers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if err := history.Push(ctx, []byte(fmt.Sprintf("p-%d", n))); err != nil {
				t.Errorf("concurrent Push failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	entries, err := history.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	// Serialized pushes lose nothing below the depth bound.
	if len(entries) != pushers {
		t.Errorf("expected %d entries, got %d", pushers, len(entries))
	}
}
