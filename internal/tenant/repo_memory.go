package tenant

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory tenant store for tests and local runs.
type MemoryRepo struct {
	mu        sync.Mutex
	instances map[string]Instance
}

func NewMemoryRepo(instances ...Instance) *MemoryRepo {
	r := &MemoryRepo{instances: map[string]Instance{}}
	for _, in := range instances {
		r.instances[in.ID] = in
	}
	return r
}

func (r *MemoryRepo) Put(in Instance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[in.ID] = in
}

func (r *MemoryRepo) ListActive(ctx context.Context) ([]Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Instance, 0, len(r.instances))
	for _, in := range r.instances {
		if in.Active {
			out = append(out, in)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepo) Get(ctx context.Context, instanceID string) (Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.instances[instanceID]
	if !ok {
		return Instance{}, ErrNotFound
	}
	return in, nil
}
