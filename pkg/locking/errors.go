package locking

import (
	"errors"
	"fmt"
)

var (
	// ErrAcquireTimeout classifies lock acquisition that did not succeed within
	// the caller's deadline. Expected under contention; callers decide whether
	// to retry, back off, or fail.
	ErrAcquireTimeout = errors.New("locking acquire timeout")
	// ErrBackendUnavailable classifies an unreachable coordination store.
	// Infrastructure failure, not contention; must not be retried blindly.
	ErrBackendUnavailable = errors.New("locking backend unavailable")
	// ErrNotHeld classifies release of a guard that is not currently held
	// (double release or release without acquire).
	ErrNotHeld = errors.New("locking lock not held")
	// ErrInvalidArgument classifies invalid caller arguments.
	ErrInvalidArgument = errors.New("locking invalid argument")
	// ErrNotInitialized classifies operations on an uninitialized manager.
	ErrNotInitialized = errors.New("locking not initialized")
)

func lockError(kind error, message string) error {
	if message == "" {
		return kind
	}
	return fmt.Errorf("%w: %s", kind, message)
}
