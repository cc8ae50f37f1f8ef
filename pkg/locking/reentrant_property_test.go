package locking

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestReentrantMutex_Property_DepthBalancesOut(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 60
	properties := gopter.NewProperties(parameters)

	properties.Property("n acquires need exactly n releases", prop.ForAll(
		func(depth int) bool {
			m := &reentrantMutex{}
			const holder, other = uint64(1), uint64(2)

			for i := 0; i < depth; i++ {
				if !m.tryLock(holder) {
					return false
				}
			}

			// Any prefix of releases leaves the lock held against another owner.
			for i := 0; i < depth-1; i++ {
				if err := m.unlock(holder); err != nil {
					return false
				}
				if m.tryLock(other) {
					return false
				}
			}

			if err := m.unlock(holder); err != nil {
				return false
			}
			if !m.tryLock(other) {
				return false
			}
			return m.unlock(other) == nil
		},
		gen.IntRange(1, 20),
	))

	properties.Property("unlock without a hold is rejected", prop.ForAll(
		func(gid uint64) bool {
			m := &reentrantMutex{}
			return m.unlock(gid) != nil
		},
		gen.UInt64(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRegistry_Property_OneEntryPerResource(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 40
	properties := gopter.NewProperties(parameters)

	properties.Property("repeated lookups share a single entry", prop.ForAll(
		func(names []string) bool {
			r := newRegistry()

			unique := make(map[string]*reentrantMutex)
			for _, name := range names {
				entry := r.get(name)
				if entry == nil {
					return false
				}
				if seen, ok := unique[name]; ok {
					if seen != entry {
						return false
					}
					continue
				}
				unique[name] = entry
			}

			return r.size() == len(unique)
		},
		gen.SliceOf(gen.Identifier()),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
