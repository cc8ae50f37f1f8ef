package status

import (
	"errors"
	"fmt"
)

// Typed status flag errors.
var (
	// ErrBackendUnavailable indicates the flag backend cannot be reached
	ErrBackendUnavailable = errors.New("status backend unavailable")

	// ErrInvalidArgument indicates invalid input parameters
	ErrInvalidArgument = errors.New("status invalid argument")

	// ErrNotInitialized indicates the store is not properly initialized
	ErrNotInitialized = errors.New("status not initialized")
)

func statusError(kind error, message string) error {
	return fmt.Errorf("%w: %s", kind, message)
}
