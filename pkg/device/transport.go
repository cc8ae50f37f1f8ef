package device

import "context"

// Transport is the stateful inverter connection. Implementations own protocol
// framing, register maps, and reconnection; callers only see whole readings
// and whole commands. A Transport is not assumed safe for concurrent
// transactions: serialization is the coordination layer's job.
type Transport interface {
	// Read performs one read transaction. A full refresh re-reads every
	// register bank instead of only the volatile ones.
	Read(ctx context.Context, fullRefresh bool) (*Reading, error)

	// Write performs one control write and verifies the register took the
	// value before returning.
	Write(ctx context.Context, cmd Command) error

	// Close tears down the connection.
	Close() error
}
