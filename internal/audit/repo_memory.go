package audit

import (
	"context"
	"sync"
)

// MemoryRepo is a simple in-memory append-only repository useful for tests.
// It is not intended for production use.

type MemoryRepo struct {
	mu    sync.Mutex
	facts []Fact
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, f Fact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.facts = append(r.facts, f)
	return nil
}

func (r *MemoryRepo) Facts() []Fact {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Fact, len(r.facts))
	copy(out, r.facts)
	return out
}
