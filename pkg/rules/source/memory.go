package source

import (
	"context"
	"sync"

	"mercator-hq/palisade/pkg/rules"
)

// MemorySource holds a rule set in memory. Update replaces the set and
// notifies every active Watch; useful for embedding the engine behind a
// control plane, and for tests.
type MemorySource struct {
	mu      sync.Mutex
	set     rules.Set
	nextID  int
	watches map[int]chan rules.Set
}

// NewMemorySource builds a memory source seeded with set.
func NewMemorySource(set rules.Set) *MemorySource {
	return &MemorySource{
		set:     set,
		watches: make(map[int]chan rules.Set),
	}
}

// Load returns the current set.
func (ms *MemorySource) Load() (rules.Set, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.set, nil
}

// Update replaces the set and notifies watchers. A watcher that has not
// drained its previous notification only sees the newest set.
func (ms *MemorySource) Update(set rules.Set) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.set = set
	for _, ch := range ms.watches {
		select {
		case ch <- set:
		default:
			// drop the stale pending set and queue the new one
			select {
			case <-ch:
			default:
			}
			ch <- set
		}
	}
}

// Watch blocks until ctx is cancelled, invoking onUpdate for each
// Update call.
func (ms *MemorySource) Watch(ctx context.Context, onUpdate func(rules.Set)) error {
	ch := make(chan rules.Set, 1)

	ms.mu.Lock()
	id := ms.nextID
	ms.nextID++
	ms.watches[id] = ch
	ms.mu.Unlock()

	defer func() {
		ms.mu.Lock()
		delete(ms.watches, id)
		ms.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case set := <-ch:
			onUpdate(set)
		}
	}
}
