package device

import (
	"errors"
	"fmt"
)

// Typed device errors.
var (
	// ErrCommandInProgress indicates the command family already has a run in flight
	ErrCommandInProgress = errors.New("device command already in progress")

	// ErrCommandTimeout indicates the command could not take the write lock in time
	ErrCommandTimeout = errors.New("device command timed out waiting for the inverter")

	// ErrTransportFailure indicates the inverter transport failed mid-transaction
	ErrTransportFailure = errors.New("device transport failure")

	// ErrQueueFull indicates the command queue rejected a submission
	ErrQueueFull = errors.New("device command queue full")

	// ErrInvalidArgument indicates invalid input parameters
	ErrInvalidArgument = errors.New("device invalid argument")

	// ErrNotRunning indicates a lifecycle operation against a stopped component
	ErrNotRunning = errors.New("device component not running")
)

func deviceError(kind error, message string) error {
	return fmt.Errorf("%w: %s", kind, message)
}
