package bills

import (
	"context"
	"sync"
)

// MemoryRepo keeps bills in insertion order. Useful for tests and local runs.
type MemoryRepo struct {
	mu    sync.Mutex
	bills []Bill
	marks []CallMark

	// ListErr, when set, is returned by ListOverdue.
	ListErr error
}

func NewMemoryRepo(bills ...Bill) *MemoryRepo {
	return &MemoryRepo{bills: append([]Bill(nil), bills...)}
}

func (r *MemoryRepo) Add(b ...Bill) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bills = append(r.bills, b...)
}

func (r *MemoryRepo) ListOverdue(ctx context.Context, instanceID string) ([]Bill, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ListErr != nil {
		return nil, r.ListErr
	}
	var out []Bill
	for _, b := range r.bills {
		if b.InstanceID != instanceID {
			continue
		}
		if b.DueStatus != "" && b.DueStatus != DueStatusOverdue {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (r *MemoryRepo) AppendCallMarks(ctx context.Context, marks []CallMark) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.marks = append(r.marks, marks...)
	return nil
}

// Marks returns a copy of every appended call mark.
func (r *MemoryRepo) Marks() []CallMark {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CallMark, len(r.marks))
	copy(out, r.marks)
	return out
}
