// Package cache provides the shared reading cache between the polling loop
// and read-only consumers. Values travel in a JSON envelope carrying the
// write timestamp; an entry that fails to decode reads as absent so a
// corrupted cache degrades to a miss instead of an outage.
package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Repository stores opaque payloads under string keys.
type Repository interface {
	// Get returns the payload for key. The boolean reports presence;
	// corrupted entries report absent with a nil error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores the payload under key, stamping the write time.
	Set(ctx context.Context, key string, value []byte) error

	// Invalidate removes the entry for key. Removing a missing key is a no-op.
	Invalidate(ctx context.Context, key string) error

	// HealthCheck verifies the cache backend is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases backend connections.
	Close() error
}

// Well-known cache keys.
const (
	// KeyLatestReading holds the most recent inverter reading.
	KeyLatestReading = "reading:latest"
	// KeyReadingHistory holds the bounded stack of recent readings.
	KeyReadingHistory = "reading:history"
)

// envelope wraps every stored value. Payload round-trips as raw bytes
// (base64 in the stored JSON).
type envelope struct {
	WrittenAt time.Time `json:"written_at"`
	Payload   []byte    `json:"payload"`
}

func encodeEnvelope(payload []byte) ([]byte, error) {
	return json.Marshal(envelope{
		WrittenAt: time.Now().UTC(),
		Payload:   payload,
	})
}

// decodeEnvelope unwraps a stored entry. A decode failure means the entry is
// corrupted and must read as absent.
func decodeEnvelope(raw []byte) ([]byte, bool) {
	var e envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, false
	}
	if e.WrittenAt.IsZero() && e.Payload == nil {
		return nil, false
	}
	return e.Payload, true
}
