// Package status tracks named operation-in-progress flags. A flag set with a
// TTL clears itself if the process that set it dies before clearing it, so a
// crashed command never leaves the system refusing that command forever.
// Explicit Clear remains the primary path; expiry is the safety net.
package status

import (
	"context"
	"strings"
	"time"
)

// Store sets, clears, and inspects named status flags.
type Store interface {
	// Set raises the flag for at most ttl. A non-positive ttl is rejected;
	// self-healing depends on every flag having a bounded lifetime.
	Set(ctx context.Context, name string, ttl time.Duration) error

	// Clear lowers the flag. Clearing an unset flag is a no-op.
	Clear(ctx context.Context, name string) error

	// IsSet reports whether the flag is raised and unexpired.
	IsSet(ctx context.Context, name string) (bool, error)

	// ClearAll lowers every flag. Used at startup so flags left behind by a
	// previous run never block the first command.
	ClearAll(ctx context.Context) error

	// HealthCheck verifies the flag backend is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases backend connections.
	Close() error
}

// Well-known flag names.
const (
	// FlagForceChargeRunning marks a force-charge command in progress.
	FlagForceChargeRunning = "force_charge_running"
	// FlagForceExportRunning marks a force-export command in progress.
	FlagForceExportRunning = "force_export_running"
)

func validFlagName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", statusError(ErrInvalidArgument, "flag name is required")
	}
	return name, nil
}
