package device

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voltlock/voltlock/pkg/status"
)

func TestWorkerExecutesSubmittedCommand(t *testing.T) {
	f := newRunnerFixture(t, CommandRunnerConfig{AcquireTimeout: time.Second})
	worker, err := NewWorker(f.runner, 4)
	if err != nil {
		t.Fatalf("NewWorker failed: %v", err)
	}

	ctx := context.Background()
	if err := worker.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer worker.Stop(ctx)

	if err := worker.Submit(ctx, Command{Type: CommandForceChargeStart, TargetSOC: 80}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	deadline := time.After(time.Second)
	for f.transport.writeCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("submitted command never executed")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestWorkerRejectsWhenStopped(t *testing.T) {
	f := newRunnerFixture(t, CommandRunnerConfig{})
	worker, err := NewWorker(f.runner, 0)
	if err != nil {
		t.Fatalf("NewWorker failed: %v", err)
	}
	if worker.queueSize != DefaultCommandQueueSize {
		t.Fatalf("expected default queue size, got %d", worker.queueSize)
	}

	err = worker.Submit(context.Background(), Command{Type: CommandForceChargeStart})
	if !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}

func TestWorkerQueueFull(t *testing.T) {
	f := newRunnerFixture(t, CommandRunnerConfig{AcquireTimeout: time.Second})
	// The first command blocks inside the transport so the queue backs up.
	gate := make(chan struct{})
	f.transport.writeGate = gate
	defer close(gate)

	worker, err := NewWorker(f.runner, 1)
	if err != nil {
		t.Fatalf("NewWorker failed: %v", err)
	}
	ctx := context.Background()
	if err := worker.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer worker.Stop(ctx)

	if err := worker.Submit(ctx, Command{Type: CommandForceChargeStart}); err != nil {
		t.Fatalf("first Submit failed: %v", err)
	}

	// Wait until the consumer picked it up and raised the flag.
	deadline := time.After(time.Second)
	for {
		raised, err := f.flags.IsSet(ctx, status.FlagForceChargeRunning)
		if err != nil {
			t.Fatalf("IsSet failed: %v", err)
		}
		if raised {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first command never started")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// One export command fills the single queue slot; the next overflows.
	if err := worker.Submit(ctx, Command{Type: CommandForceExportStart}); err != nil {
		t.Fatalf("second Submit failed: %v", err)
	}
	err = worker.Submit(ctx, Command{Type: CommandForceExportStop})
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestWorkerRejectsInProgressFamilySynchronously(t *testing.T) {
	f := newRunnerFixture(t, CommandRunnerConfig{AcquireTimeout: time.Second})
	worker, err := NewWorker(f.runner, 4)
	if err != nil {
		t.Fatalf("NewWorker failed: %v", err)
	}
	ctx := context.Background()
	if err := worker.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer worker.Stop(ctx)

	if err := f.flags.Set(ctx, status.FlagForceExportRunning, time.Hour); err != nil {
		t.Fatalf("Set flag failed: %v", err)
	}

	err = worker.Submit(ctx, Command{Type: CommandForceExportStop})
	if !errors.Is(err, ErrCommandInProgress) {
		t.Fatalf("expected ErrCommandInProgress, got %v", err)
	}
}
