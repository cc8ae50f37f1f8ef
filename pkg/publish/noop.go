package publish

import "context"

// NoopPublisher discards every payload. Used for standalone deployments with
// no broker configured.
type NoopPublisher struct{}

// NewNoopPublisher creates a publisher that drops everything.
func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

// Publish discards the payload.
func (p *NoopPublisher) Publish(context.Context, string, []byte) error {
	return nil
}

// HealthCheck always reports healthy.
func (p *NoopPublisher) HealthCheck(context.Context) error {
	return nil
}

// Close is a no-op.
func (p *NoopPublisher) Close() error {
	return nil
}
