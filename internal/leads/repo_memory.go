package leads

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory lead repository for tests.

type MemoryRepo struct {
	mu    sync.Mutex
	leads []Lead
}

func NewMemoryRepo(seed ...Lead) *MemoryRepo {
	return &MemoryRepo{leads: append([]Lead(nil), seed...)}
}

func (r *MemoryRepo) Add(l Lead) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leads = append(r.leads, l)
}

func (r *MemoryRepo) FindByNumber(ctx context.Context, number string) ([]Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Lead
	for _, l := range r.leads {
		if l.PrimaryNumber == number || (l.AlternateNumber != "" && l.AlternateNumber == number) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].LeadID > out[j].LeadID
	})
	if len(out) > 2 {
		out = out[:2]
	}
	return out, nil
}
