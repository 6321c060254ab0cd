package locking

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// maxHolders bounds concurrent shared holders of one in-process lock. An
// exclusive acquisition takes the full weight.
const maxHolders = 1 << 30

// MemoryProvider implements Provider with in-process reader/writer
// semantics. Lock entries are created on demand and dropped once the last
// holder releases, so the map does not grow with the set of coordinates
// ever locked.
type MemoryProvider struct {
	mu    sync.Mutex
	locks map[string]*memoryLock
}

type memoryLock struct {
	sem  *semaphore.Weighted
	refs int
}

// NewMemoryProvider creates an empty in-process provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{locks: make(map[string]*memoryLock)}
}

// Acquire implements Provider.
func (p *MemoryProvider) Acquire(ctx context.Context, name string, exclusive bool) (func(), error) {
	p.mu.Lock()
	entry, ok := p.locks[name]
	if !ok {
		entry = &memoryLock{sem: semaphore.NewWeighted(maxHolders)}
		p.locks[name] = entry
	}
	entry.refs++
	p.mu.Unlock()

	weight := int64(1)
	if exclusive {
		weight = maxHolders
	}
	if err := entry.sem.Acquire(ctx, weight); err != nil {
		p.drop(name, entry)
		return nil, err
	}
	return func() {
		entry.sem.Release(weight)
		p.drop(name, entry)
	}, nil
}

func (p *MemoryProvider) drop(name string, entry *memoryLock) {
	p.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(p.locks, name)
	}
	p.mu.Unlock()
}
