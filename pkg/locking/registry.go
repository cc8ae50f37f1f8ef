package locking

import "sync"

// registry maps resource names to their reentrant mutex, creating entries
// lazily. Get-or-create runs under the registry's own mutex so two goroutines
// racing on a new name can never produce two distinct primitives for it.
// Entries live for the process lifetime; the set of resource names an
// application uses is small and fixed.
type registry struct {
	mu    sync.Mutex
	locks map[string]*reentrantMutex
}

func newRegistry() *registry {
	return &registry{
		locks: make(map[string]*reentrantMutex),
	}
}

// get returns the mutex for resource, creating it atomically on first use.
func (r *registry) get(resource string) *reentrantMutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.locks[resource]
	if !ok {
		entry = &reentrantMutex{}
		r.locks[resource] = entry
	}
	return entry
}

// peek returns the mutex for resource without creating one.
func (r *registry) peek(resource string) *reentrantMutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.locks[resource]
}

// size reports the number of registered resources.
func (r *registry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}
