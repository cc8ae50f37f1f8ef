// Package publish delivers cached readings to external consumers after each
// successful poll cycle. Publishers are pure collaborators: they never touch
// the coordination layer, and a failed publish never fails the cycle that
// produced the reading.
package publish

import (
	"context"
	"errors"
	"fmt"
)

// Publisher sends payloads to a topic.
type Publisher interface {
	// Publish delivers payload to topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// HealthCheck verifies the broker connection.
	HealthCheck(ctx context.Context) error

	// Close releases broker connections.
	Close() error
}

// Typed publisher errors.
var (
	// ErrBrokerUnavailable indicates the broker cannot be reached
	ErrBrokerUnavailable = errors.New("publish broker unavailable")

	// ErrInvalidArgument indicates invalid input parameters
	ErrInvalidArgument = errors.New("publish invalid argument")

	// ErrClosed indicates the publisher was already closed
	ErrClosed = errors.New("publisher closed")
)

func publishError(kind error, message string) error {
	return fmt.Errorf("%w: %s", kind, message)
}
