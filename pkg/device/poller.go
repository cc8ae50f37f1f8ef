package device

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voltlock/voltlock/pkg/cache"
	"github.com/voltlock/voltlock/pkg/locking"
	"github.com/voltlock/voltlock/pkg/observability/logger"
	"github.com/voltlock/voltlock/pkg/publish"
)

const (
	DefaultPollInterval     = 10 * time.Second
	DefaultAcquireTimeout   = 30 * time.Second
	DefaultFullRefreshEvery = 30
)

// PollerConfig controls the polling loop.
type PollerConfig struct {
	Interval         time.Duration
	AcquireTimeout   time.Duration
	FullRefreshEvery int
	Topic            string
}

func (c *PollerConfig) normalize() {
	if c.Interval <= 0 {
		c.Interval = DefaultPollInterval
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = DefaultAcquireTimeout
	}
	if c.FullRefreshEvery <= 0 {
		c.FullRefreshEvery = DefaultFullRefreshEvery
	}
	if strings.TrimSpace(c.Topic) == "" {
		c.Topic = "voltlock/readings"
	}
}

// Poller reads the inverter on a fixed interval. Every cycle runs under the
// read lock; a cycle that cannot take the lock in time is skipped and retried
// at the next tick, never queued.
type Poller struct {
	transport Transport
	locks     locking.Manager
	repo      cache.Repository
	history   *cache.HistoryStack
	publisher publish.Publisher
	log       logger.Logger

	config PollerConfig

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewPoller creates the polling loop.
func NewPoller(transport Transport, locks locking.Manager, repo cache.Repository, history *cache.HistoryStack, publisher publish.Publisher, log logger.Logger, cfg PollerConfig) (*Poller, error) {
	if transport == nil {
		return nil, deviceError(ErrInvalidArgument, "transport is required")
	}
	if locks == nil {
		return nil, deviceError(ErrInvalidArgument, "lock manager is required")
	}
	if repo == nil {
		return nil, deviceError(ErrInvalidArgument, "cache repository is required")
	}
	if history == nil {
		return nil, deviceError(ErrInvalidArgument, "history stack is required")
	}
	if publisher == nil {
		return nil, deviceError(ErrInvalidArgument, "publisher is required")
	}
	if log == nil {
		return nil, deviceError(ErrInvalidArgument, "logger is required")
	}

	cfg.normalize()
	return &Poller{
		transport: transport,
		locks:     locks,
		repo:      repo,
		history:   history,
		publisher: publisher,
		log:       log,
		config:    cfg,
	}, nil
}

// Start runs the loop until ctx is canceled, then shuts down cleanly.
func (p *Poller) Start(ctx context.Context) error {
	if p == nil {
		return deviceError(ErrNotRunning, "poller is not initialized")
	}
	if ctx == nil {
		return deviceError(ErrInvalidArgument, "context is required")
	}

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("poller already running")
	}
	runningCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true
	p.mu.Unlock()

	p.wg.Add(1)
	go p.runLoop(runningCtx)

	<-runningCtx.Done()
	return p.Stop(context.Background())
}

// Stop requests shutdown and waits for the in-flight cycle.
func (p *Poller) Stop(ctx context.Context) error {
	if p == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	cancel := p.cancel
	p.cancel = nil
	p.running = false
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	waitCh := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(waitCh)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-waitCh:
		return nil
	}
}

func (p *Poller) runLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	// First cycle immediately; consumers should not wait a full interval
	// after startup for the first reading.
	cycle := 0
	p.runCycle(ctx, cycle)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cycle++
			p.runCycle(ctx, cycle)
		}
	}
}

func (p *Poller) runCycle(ctx context.Context, cycle int) {
	if ctx.Err() != nil {
		return
	}

	cycleCtx := logger.ContextWithCycleID(ctx, uuid.NewString())
	log := p.log.WithContext(cycleCtx)
	start := time.Now()
	fullRefresh := cycle%p.config.FullRefreshEvery == 0

	guard, err := p.locks.Acquire(cycleCtx, ResourceInverterRead, p.config.AcquireTimeout)
	if err != nil {
		if errors.Is(err, locking.ErrAcquireTimeout) {
			recordPollCycle("skipped", time.Since(start))
			log.Warn("poll cycle skipped, read lock busy", "waited", time.Since(start))
			return
		}
		recordPollCycle("error", time.Since(start))
		log.Error("poll cycle failed to acquire read lock", "error", err)
		return
	}
	defer guard.Release(cycleCtx)

	reading, err := p.transport.Read(cycleCtx, fullRefresh)
	if err != nil {
		recordPollCycle("error", time.Since(start))
		log.Error("inverter read failed", "full_refresh", fullRefresh, "error", err)
		return
	}

	payload, err := json.Marshal(reading)
	if err != nil {
		recordPollCycle("error", time.Since(start))
		log.Error("encode reading failed", "error", err)
		return
	}

	if err := p.repo.Set(cycleCtx, cache.KeyLatestReading, payload); err != nil {
		recordPollCycle("error", time.Since(start))
		log.Error("cache latest reading failed", "error", err)
		return
	}
	if err := p.history.Push(cycleCtx, payload); err != nil {
		// History is best effort; the latest reading already landed.
		log.Warn("push reading history failed", "error", err)
	}

	if err := p.publisher.Publish(cycleCtx, p.config.Topic, payload); err != nil {
		// A broker outage must not fail the cycle that produced the reading.
		log.Warn("publish reading failed", "topic", p.config.Topic, "error", err)
	}

	recordPollCycle("ok", time.Since(start))
	log.Debug("poll cycle complete", "full_refresh", fullRefresh, "elapsed", time.Since(start))
}
