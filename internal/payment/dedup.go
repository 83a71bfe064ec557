package payment

import (
	"context"
	"sync"
)

// Deduper remembers processed payment ids.
type Deduper interface {
	// MarkProcessed records id and reports whether this call was the
	// first to do so.
	MarkProcessed(ctx context.Context, id string) (first bool, err error)
}

// DeduperFunc adapts a function to Deduper, e.g. a store method.
type DeduperFunc func(ctx context.Context, id string) (bool, error)

func (f DeduperFunc) MarkProcessed(ctx context.Context, id string) (bool, error) {
	return f(ctx, id)
}

// MemoryDeduper keeps ids for the process lifetime. Duplicates delivered
// after a restart are processed again.
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{seen: make(map[string]struct{})}
}

func (m *MemoryDeduper) MarkProcessed(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[id]; ok {
		return false, nil
	}
	m.seen[id] = struct{}{}
	return true, nil
}
