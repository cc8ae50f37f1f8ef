package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/voltlock/voltlock/pkg/locking"
)

// DefaultHistoryDepth is how many recent readings the stack retains.
const DefaultHistoryDepth = 5

// HistoryStack maintains a bounded newest-first stack of payloads through a
// Repository. The read-modify-write cycle serializes on its own lock
// resource, distinct from the per-key lock the memory backend takes inside
// Set, so concurrent pushers cannot interleave.
type HistoryStack struct {
	repo        Repository
	locks       locking.Manager
	key         string
	depth       int
	lockTimeout time.Duration
}

// NewHistoryStack creates a history stack stored under key. A depth of zero
// falls back to DefaultHistoryDepth.
func NewHistoryStack(repo Repository, locks locking.Manager, key string, depth int) (*HistoryStack, error) {
	if repo == nil {
		return nil, cacheError(ErrInvalidArgument, "repository is required")
	}
	if locks == nil {
		return nil, cacheError(ErrInvalidArgument, "lock manager is required")
	}
	key, err := validKey(key)
	if err != nil {
		return nil, err
	}
	if depth < 0 {
		return nil, cacheError(ErrInvalidArgument, "history depth cannot be negative")
	}
	if depth == 0 {
		depth = DefaultHistoryDepth
	}
	return &HistoryStack{
		repo:        repo,
		locks:       locks,
		key:         key,
		depth:       depth,
		lockTimeout: defaultMemoryLockTimeout,
	}, nil
}

// Push prepends payload and trims the stack to its depth.
func (h *HistoryStack) Push(ctx context.Context, payload []byte) error {
	guard, err := h.locks.Acquire(ctx, h.lockResource(), h.lockTimeout)
	if err != nil {
		return errors.Join(cacheError(ErrBackendUnavailable, "acquire history lock failed for "+h.key), err)
	}
	defer guard.Release(ctx)

	entries, err := h.load(ctx)
	if err != nil {
		return err
	}

	entries = append([][]byte{payload}, entries...)
	if len(entries) > h.depth {
		entries = entries[:h.depth]
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		return errors.Join(cacheError(ErrInvalidArgument, "encode history failed for "+h.key), err)
	}
	return h.repo.Set(ctx, h.key, raw)
}

// List returns the stack newest first.
func (h *HistoryStack) List(ctx context.Context) ([][]byte, error) {
	guard, err := h.locks.Acquire(ctx, h.lockResource(), h.lockTimeout)
	if err != nil {
		return nil, errors.Join(cacheError(ErrBackendUnavailable, "acquire history lock failed for "+h.key), err)
	}
	defer guard.Release(ctx)

	return h.load(ctx)
}

func (h *HistoryStack) load(ctx context.Context) ([][]byte, error) {
	raw, ok, err := h.repo.Get(ctx, h.key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var entries [][]byte
	if err := json.Unmarshal(raw, &entries); err != nil {
		// Undecodable history restarts empty, same as a corrupted entry.
		return nil, nil
	}
	return entries, nil
}

func (h *HistoryStack) lockResource() string {
	return "cache:history:" + h.key
}
