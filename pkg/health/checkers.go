package health

import (
	"context"
	"time"
)

const defaultCheckTimeout = 5 * time.Second

// Checkable is any component exposing a HealthCheck method. The lock manager,
// cache repository, flag store, and publishers all satisfy it.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// ComponentChecker wraps a Checkable with a name and a per-check timeout.
type ComponentChecker struct {
	name      string
	component Checkable
	timeout   time.Duration
}

// NewComponentChecker creates a checker for component.
func NewComponentChecker(name string, component Checkable, timeout time.Duration) *ComponentChecker {
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	return &ComponentChecker{
		name:      name,
		component: component,
		timeout:   timeout,
	}
}

// Check runs the component's health check under the timeout.
func (c *ComponentChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.component.HealthCheck(checkCtx)
	result := CheckResult{
		Name:      c.name,
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC(),
		Duration:  time.Since(start),
	}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
	}
	return result
}

// Name returns the checker name.
func (c *ComponentChecker) Name() string {
	return c.name
}

// Convenience constructors for the service's standard components.

// NewLockChecker checks the lock manager backend.
func NewLockChecker(manager Checkable) *ComponentChecker {
	return NewComponentChecker("locks", manager, defaultCheckTimeout)
}

// NewCacheChecker checks the cache repository backend.
func NewCacheChecker(repo Checkable) *ComponentChecker {
	return NewComponentChecker("cache", repo, defaultCheckTimeout)
}

// NewFlagChecker checks the status flag backend.
func NewFlagChecker(store Checkable) *ComponentChecker {
	return NewComponentChecker("flags", store, defaultCheckTimeout)
}

// NewPublisherChecker checks the reading publisher connection.
func NewPublisherChecker(publisher Checkable) *ComponentChecker {
	return NewComponentChecker("publisher", publisher, defaultCheckTimeout)
}
