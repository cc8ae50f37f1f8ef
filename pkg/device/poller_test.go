package device

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/voltlock/voltlock/pkg/cache"
	"github.com/voltlock/voltlock/pkg/locking"
	"github.com/voltlock/voltlock/pkg/observability/logger"
)

type deviceTestLogger struct{}

func (l *deviceTestLogger) Debug(string, ...any) {}
func (l *deviceTestLogger) Info(string, ...any)  {}
func (l *deviceTestLogger) Warn(string, ...any)  {}
func (l *deviceTestLogger) Error(string, ...any) {}
func (l *deviceTestLogger) With(...any) logger.Logger {
	return l
}
func (l *deviceTestLogger) WithContext(context.Context) logger.Logger {
	return l
}

type fakeTransport struct {
	mu        sync.Mutex
	reads     int
	fulls     int
	writes    []Command
	readErr   error
	writeErr  error
	writeGate chan struct{}
}

func (f *fakeTransport) Read(_ context.Context, fullRefresh bool) (*Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	f.reads++
	if fullRefresh {
		f.fulls++
	}
	return &Reading{
		Serial:      "SA2243G001",
		Timestamp:   time.Now().UTC(),
		FullRefresh: fullRefresh,
		Values:      map[string]any{"soc": 57, "reads": f.reads},
	}, nil
}

func (f *fakeTransport) Write(_ context.Context, cmd Command) error {
	if f.writeGate != nil {
		<-f.writeGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, cmd)
	return nil
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

func (f *fakeTransport) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

type pollerFixture struct {
	transport *fakeTransport
	locks     locking.Manager
	repo      cache.Repository
	history   *cache.HistoryStack
	publisher *recordingPublisher
	poller    *Poller
}

type recordingPublisher struct {
	mu       sync.Mutex
	payloads [][]byte
	err      error
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.payloads = append(p.payloads, payload)
	return nil
}

func (p *recordingPublisher) HealthCheck(context.Context) error { return nil }
func (p *recordingPublisher) Close() error                      { return nil }

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.payloads)
}

func newPollerFixture(t *testing.T, cfg PollerConfig) *pollerFixture {
	t.Helper()
	log := &deviceTestLogger{}

	locks, err := locking.NewInProcessManager(locking.InProcessManagerConfig{RetryInterval: 2 * time.Millisecond}, log)
	if err != nil {
		t.Fatalf("NewInProcessManager failed: %v", err)
	}
	repo, err := cache.NewMemoryRepository(cache.MemoryRepositoryConfig{}, locks, log)
	if err != nil {
		t.Fatalf("NewMemoryRepository failed: %v", err)
	}
	history, err := cache.NewHistoryStack(repo, locks, cache.KeyReadingHistory, 0)
	if err != nil {
		t.Fatalf("NewHistoryStack failed: %v", err)
	}

	transport := &fakeTransport{}
	publisher := &recordingPublisher{}
	poller, err := NewPoller(transport, locks, repo, history, publisher, log, cfg)
	if err != nil {
		t.Fatalf("NewPoller failed: %v", err)
	}
	return &pollerFixture{
		transport: transport,
		locks:     locks,
		repo:      repo,
		history:   history,
		publisher: publisher,
		poller:    poller,
	}
}

func TestPollerCycleCachesAndPublishes(t *testing.T) {
	f := newPollerFixture(t, PollerConfig{AcquireTimeout: time.Second})
	ctx := context.Background()

	f.poller.runCycle(ctx, 0)

	if got := f.transport.readCount(); got != 1 {
		t.Fatalf("expected one read, got %d", got)
	}
	if f.transport.fulls != 1 {
		t.Error("cycle zero must be a full refresh")
	}

	payload, ok, err := f.repo.Get(ctx, cache.KeyLatestReading)
	if err != nil || !ok {
		t.Fatalf("latest reading missing from cache: ok=%v err=%v", ok, err)
	}
	var reading Reading
	if err := json.Unmarshal(payload, &reading); err != nil {
		t.Fatalf("cached payload is not a reading: %v", err)
	}
	if reading.Serial != "SA2243G001" {
		t.Errorf("unexpected serial %s", reading.Serial)
	}

	entries, err := f.history.List(ctx)
	if err != nil {
		t.Fatalf("history List failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected one history entry, got %d", len(entries))
	}

	if f.publisher.count() != 1 {
		t.Errorf("expected one publish, got %d", f.publisher.count())
	}
}

func TestPollerFullRefreshCadence(t *testing.T) {
	f := newPollerFixture(t, PollerConfig{AcquireTimeout: time.Second, FullRefreshEvery: 3})
	ctx := context.Background()

	for cycle := 0; cycle < 7; cycle++ {
		f.poller.runCycle(ctx, cycle)
	}

	// Cycles 0, 3, 6 are full refreshes.
	if f.transport.fulls != 3 {
		t.Errorf("expected 3 full refreshes over 7 cycles, got %d", f.transport.fulls)
	}
}

func TestPollerSkipsCycleWhenLockBusy(t *testing.T) {
	f := newPollerFixture(t, PollerConfig{AcquireTimeout: 50 * time.Millisecond})
	ctx := context.Background()

	// Another goroutine holds the read lock for the whole cycle.
	held := make(chan *locking.Guard, 1)
	go func() {
		guard, err := f.locks.Acquire(ctx, ResourceInverterRead, time.Second)
		if err != nil {
			t.Errorf("holder acquire failed: %v", err)
			held <- nil
			return
		}
		held <- guard
	}()
	guard := <-held
	if guard == nil {
		t.FailNow()
	}
	defer guard.Release(ctx)

	f.poller.runCycle(ctx, 1)

	if got := f.transport.readCount(); got != 0 {
		t.Errorf("skipped cycle must not touch the transport, got %d reads", got)
	}
	if _, ok, _ := f.repo.Get(ctx, cache.KeyLatestReading); ok {
		t.Error("skipped cycle must not write the cache")
	}
}

func TestPollerPublishFailureDoesNotFailCycle(t *testing.T) {
	f := newPollerFixture(t, PollerConfig{AcquireTimeout: time.Second})
	f.publisher.err = context.DeadlineExceeded
	ctx := context.Background()

	f.poller.runCycle(ctx, 0)

	// The reading still landed in the cache.
	if _, ok, err := f.repo.Get(ctx, cache.KeyLatestReading); err != nil || !ok {
		t.Errorf("cycle with failed publish must still cache the reading: ok=%v err=%v", ok, err)
	}
}

func TestPollerStartStop(t *testing.T) {
	f := newPollerFixture(t, PollerConfig{
		Interval:       20 * time.Millisecond,
		AcquireTimeout: time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- f.poller.Start(ctx)
	}()

	// Let a few cycles run, then shut down.
	time.Sleep(70 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancel")
	}

	if got := f.transport.readCount(); got < 2 {
		t.Errorf("expected multiple cycles before shutdown, got %d", got)
	}

	// Stop is idempotent.
	if err := f.poller.Stop(context.Background()); err != nil {
		t.Errorf("second Stop returned %v", err)
	}
}
