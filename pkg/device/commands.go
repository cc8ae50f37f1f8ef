package device

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/voltlock/voltlock/pkg/cache"
	"github.com/voltlock/voltlock/pkg/locking"
	"github.com/voltlock/voltlock/pkg/observability/logger"
	"github.com/voltlock/voltlock/pkg/status"
)

const DefaultFlagTTL = time.Hour

// CommandRunnerConfig controls command execution.
type CommandRunnerConfig struct {
	AcquireTimeout time.Duration
	// FlagTTL bounds how long an in-progress flag can outlive a crashed run.
	FlagTTL time.Duration
}

func (c *CommandRunnerConfig) normalize() {
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = DefaultAcquireTimeout
	}
	if c.FlagTTL <= 0 {
		c.FlagTTL = DefaultFlagTTL
	}
}

// CommandRunner executes control commands against the inverter. A run raises
// the family's in-progress flag, takes the write lock, performs the write,
// refreshes the cached reading, and lowers the flag. Flag and lock are
// cleaned up on every exit path.
type CommandRunner struct {
	transport Transport
	locks     locking.Manager
	flags     status.Store
	repo      cache.Repository
	log       logger.Logger
	config    CommandRunnerConfig
}

// NewCommandRunner creates a command runner.
func NewCommandRunner(transport Transport, locks locking.Manager, flags status.Store, repo cache.Repository, log logger.Logger, cfg CommandRunnerConfig) (*CommandRunner, error) {
	if transport == nil {
		return nil, deviceError(ErrInvalidArgument, "transport is required")
	}
	if locks == nil {
		return nil, deviceError(ErrInvalidArgument, "lock manager is required")
	}
	if flags == nil {
		return nil, deviceError(ErrInvalidArgument, "flag store is required")
	}
	if repo == nil {
		return nil, deviceError(ErrInvalidArgument, "cache repository is required")
	}
	if log == nil {
		return nil, deviceError(ErrInvalidArgument, "logger is required")
	}

	cfg.normalize()
	return &CommandRunner{
		transport: transport,
		locks:     locks,
		flags:     flags,
		repo:      repo,
		log:       log,
		config:    cfg,
	}, nil
}

// Run executes cmd. It refuses to start while the family's flag is raised and
// surfaces lock contention as ErrCommandTimeout, a user-visible failure.
func (r *CommandRunner) Run(ctx context.Context, cmd Command) error {
	if r == nil || r.transport == nil {
		return deviceError(ErrNotRunning, "command runner is not initialized")
	}
	if err := cmd.Validate(); err != nil {
		recordCommand(cmd.Type, "invalid")
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	flagName, _ := cmd.Type.Flag()
	log := r.log.With("command", string(cmd.Type), "flag", flagName)

	raised, err := r.flags.IsSet(ctx, flagName)
	if err != nil {
		recordCommand(cmd.Type, "error")
		return errors.Join(deviceError(ErrTransportFailure, "inspect flag failed"), err)
	}
	if raised {
		recordCommand(cmd.Type, "rejected")
		log.Warn("command rejected, already in progress")
		return deviceError(ErrCommandInProgress, flagName)
	}

	if err := r.flags.Set(ctx, flagName, r.config.FlagTTL); err != nil {
		recordCommand(cmd.Type, "error")
		return errors.Join(deviceError(ErrTransportFailure, "raise flag failed"), err)
	}
	defer func() {
		if err := r.flags.Clear(context.Background(), flagName); err != nil {
			// TTL expiry will lower it; log so the operator knows.
			log.Warn("lower flag failed, relying on ttl", "error", err)
		}
	}()

	guard, err := r.locks.Acquire(ctx, ResourceInverterWrite, r.config.AcquireTimeout)
	if err != nil {
		if errors.Is(err, locking.ErrAcquireTimeout) {
			recordCommand(cmd.Type, "timeout")
			log.Warn("command timed out waiting for write lock", "timeout", r.config.AcquireTimeout)
			return errors.Join(deviceError(ErrCommandTimeout, string(cmd.Type)), err)
		}
		recordCommand(cmd.Type, "error")
		return errors.Join(deviceError(ErrTransportFailure, "acquire write lock failed"), err)
	}
	defer guard.Release(ctx)

	if err := r.transport.Write(ctx, cmd); err != nil {
		recordCommand(cmd.Type, "error")
		log.Error("inverter write failed", "error", err)
		return errors.Join(deviceError(ErrTransportFailure, "write failed for "+string(cmd.Type)), err)
	}

	// Refresh the cached reading so consumers observe post-command state
	// without waiting for the next poll cycle. Best effort.
	if reading, err := r.transport.Read(ctx, false); err != nil {
		log.Warn("post-command read failed", "error", err)
	} else if payload, err := json.Marshal(reading); err == nil {
		if err := r.repo.Set(ctx, cache.KeyLatestReading, payload); err != nil {
			log.Warn("cache post-command reading failed", "error", err)
		}
	}

	recordCommand(cmd.Type, "ok")
	log.Info("command complete")
	return nil
}
