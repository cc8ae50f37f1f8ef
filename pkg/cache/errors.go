package cache

import (
	"errors"
	"fmt"
)

// Typed cache errors.
var (
	// ErrBackendUnavailable indicates the cache backend cannot be reached
	ErrBackendUnavailable = errors.New("cache backend unavailable")

	// ErrInvalidArgument indicates invalid input parameters
	ErrInvalidArgument = errors.New("cache invalid argument")

	// ErrNotInitialized indicates the repository is not properly initialized
	ErrNotInitialized = errors.New("cache not initialized")
)

func cacheError(kind error, message string) error {
	return fmt.Errorf("%w: %s", kind, message)
}
