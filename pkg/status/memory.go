package status

import (
	"context"
	"sync"
	"time"

	"github.com/voltlock/voltlock/pkg/observability/logger"
)

// MemoryStore keeps flag expiry deadlines in a map. Expiry is lazy: an
// expired flag reads as unset and is removed on the read that finds it.
type MemoryStore struct {
	log logger.Logger

	mu    sync.Mutex
	flags map[string]time.Time
}

// NewMemoryStore creates an in-process flag store.
func NewMemoryStore(log logger.Logger) (*MemoryStore, error) {
	if log == nil {
		return nil, statusError(ErrInvalidArgument, "logger is required")
	}
	return &MemoryStore{
		log:   log,
		flags: make(map[string]time.Time),
	}, nil
}

// Set raises the flag until now+ttl.
func (s *MemoryStore) Set(_ context.Context, name string, ttl time.Duration) error {
	if s == nil || s.flags == nil {
		return statusError(ErrNotInitialized, "memory flag store is not initialized")
	}
	name, err := validFlagName(name)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		return statusError(ErrInvalidArgument, "flag ttl must be positive")
	}

	s.mu.Lock()
	s.flags[name] = time.Now().Add(ttl)
	s.mu.Unlock()
	s.log.Debug("status flag set", "flag", name, "ttl", ttl)
	return nil
}

// Clear lowers the flag.
func (s *MemoryStore) Clear(_ context.Context, name string) error {
	if s == nil || s.flags == nil {
		return statusError(ErrNotInitialized, "memory flag store is not initialized")
	}
	name, err := validFlagName(name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.flags, name)
	s.mu.Unlock()
	s.log.Debug("status flag cleared", "flag", name)
	return nil
}

// IsSet reports whether the flag is raised and unexpired.
func (s *MemoryStore) IsSet(_ context.Context, name string) (bool, error) {
	if s == nil || s.flags == nil {
		return false, statusError(ErrNotInitialized, "memory flag store is not initialized")
	}
	name, err := validFlagName(name)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	deadline, ok := s.flags[name]
	if !ok {
		return false, nil
	}
	if time.Now().After(deadline) {
		delete(s.flags, name)
		s.log.Warn("status flag expired, self-healed", "flag", name)
		return false, nil
	}
	return true, nil
}

// ClearAll lowers every flag.
func (s *MemoryStore) ClearAll(context.Context) error {
	if s == nil || s.flags == nil {
		return statusError(ErrNotInitialized, "memory flag store is not initialized")
	}
	s.mu.Lock()
	s.flags = make(map[string]time.Time)
	s.mu.Unlock()
	return nil
}

// HealthCheck reports healthy while the map exists.
func (s *MemoryStore) HealthCheck(context.Context) error {
	if s == nil || s.flags == nil {
		return statusError(ErrNotInitialized, "memory flag store is not initialized")
	}
	return nil
}

// Close discards all flags.
func (s *MemoryStore) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	s.flags = make(map[string]time.Time)
	s.mu.Unlock()
	return nil
}
