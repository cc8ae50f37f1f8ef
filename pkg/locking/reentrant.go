package locking

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// reentrantMutex is a per-resource mutual exclusion primitive that the owning
// goroutine may re-acquire without blocking. Ownership is tracked by goroutine
// ID with a reentry depth; the lock frees only when depth returns to zero.
type reentrantMutex struct {
	mu    sync.Mutex
	owner uint64
	depth int
}

// tryLock attempts a non-blocking acquisition for gid.
// Succeeds when the mutex is free or already owned by gid.
func (m *reentrantMutex) tryLock(gid uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.owner == 0 || m.owner == gid {
		m.owner = gid
		m.depth++
		return true
	}
	return false
}

// unlock decrements the reentry depth for gid, freeing the mutex at zero.
func (m *reentrantMutex) unlock(gid uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.owner != gid || m.depth == 0 {
		return lockError(ErrNotHeld, "unlock by non-owner")
	}
	m.depth--
	if m.depth == 0 {
		m.owner = 0
	}
	return nil
}

// heldByOther reports whether the mutex is owned by a goroutine other than gid.
func (m *reentrantMutex) heldByOther(gid uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner != 0 && m.owner != gid
}

var goroutinePrefix = []byte("goroutine ")

// goroutineID parses the current goroutine's ID from its stack header.
// The runtime offers no public accessor; the header format ("goroutine N [")
// has been stable since Go 1.0 and this is the standard way to obtain it.
func goroutineID() uint64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	stack := bytes.TrimPrefix(buf[:n], goroutinePrefix)
	idField := stack[:bytes.IndexByte(stack, ' ')]
	id, err := strconv.ParseUint(string(idField), 10, 64)
	if err != nil {
		// Never observed in practice; a shared sentinel still serializes.
		return ^uint64(0)
	}
	return id
}
