package device

import (
	"context"
	"errors"
	"sync"
)

const DefaultCommandQueueSize = 16

// Worker executes submitted commands one at a time off a bounded queue.
// Submission is non-blocking: a full queue rejects with ErrQueueFull, and a
// command whose family is already running is rejected up front so the caller
// hears about it synchronously.
type Worker struct {
	runner    *CommandRunner
	queueSize int

	mu      sync.Mutex
	running bool
	queue   chan Command
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWorker creates a command worker. A queueSize of zero falls back to
// DefaultCommandQueueSize.
func NewWorker(runner *CommandRunner, queueSize int) (*Worker, error) {
	if runner == nil {
		return nil, deviceError(ErrInvalidArgument, "command runner is required")
	}
	if queueSize < 0 {
		return nil, deviceError(ErrInvalidArgument, "queue size cannot be negative")
	}
	if queueSize == 0 {
		queueSize = DefaultCommandQueueSize
	}
	return &Worker{
		runner:    runner,
		queueSize: queueSize,
	}, nil
}

// Start launches the consumer goroutine.
func (w *Worker) Start(ctx context.Context) error {
	if w == nil || w.runner == nil {
		return deviceError(ErrNotRunning, "worker is not initialized")
	}
	if ctx == nil {
		return deviceError(ErrInvalidArgument, "context is required")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("worker already running")
	}
	runningCtx, cancel := context.WithCancel(ctx)
	w.queue = make(chan Command, w.queueSize)
	w.cancel = cancel
	w.running = true

	w.wg.Add(1)
	go w.consume(runningCtx, w.queue)
	return nil
}

// Stop drains nothing: queued commands not yet started are dropped.
func (w *Worker) Stop(ctx context.Context) error {
	if w == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	cancel := w.cancel
	w.cancel = nil
	w.running = false
	w.queue = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	waitCh := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(waitCh)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-waitCh:
		return nil
	}
}

// Submit validates and enqueues cmd. Rejections are synchronous: an invalid
// command, an in-progress family, or a full queue fail the call immediately.
func (w *Worker) Submit(ctx context.Context, cmd Command) error {
	if w == nil || w.runner == nil {
		return deviceError(ErrNotRunning, "worker is not initialized")
	}
	if err := cmd.Validate(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	flagName, _ := cmd.Type.Flag()
	raised, err := w.runner.flags.IsSet(ctx, flagName)
	if err != nil {
		return errors.Join(deviceError(ErrTransportFailure, "inspect flag failed"), err)
	}
	if raised {
		return deviceError(ErrCommandInProgress, flagName)
	}

	w.mu.Lock()
	queue := w.queue
	running := w.running
	w.mu.Unlock()
	if !running || queue == nil {
		return deviceError(ErrNotRunning, "worker is stopped")
	}

	select {
	case queue <- cmd:
		return nil
	default:
		return deviceError(ErrQueueFull, string(cmd.Type))
	}
}

func (w *Worker) consume(ctx context.Context, queue chan Command) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-queue:
			if err := w.runner.Run(ctx, cmd); err != nil {
				w.runner.log.Error("queued command failed", "command", string(cmd.Type), "error", err)
			}
		}
	}
}
