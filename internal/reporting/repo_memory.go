package reporting

import (
	"context"
	"errors"
	"sync"
	"time"

	"debt-collector/internal/audit"
	"debt-collector/internal/calls"
)

// MemoryRepo is a simple in-memory reporting repository for tests.
// It enforces instance isolation on reads.

type MemoryRepo struct {
	mu sync.Mutex

	History []calls.HistoryEntry
	Gateway []calls.GatewayCallRecord
	Events  []audit.Event
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) ListHistory(ctx context.Context, instanceID string, from, to time.Time) ([]calls.HistoryEntry, error) {
	if instanceID == "" {
		return nil, errors.New("instance_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]calls.HistoryEntry, 0)
	for _, e := range r.History {
		if e.InstanceID == instanceID && within(e.TriggeredAt, from, to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *MemoryRepo) ListGatewayCalls(ctx context.Context, instanceID string, from, to time.Time) ([]calls.GatewayCallRecord, error) {
	if instanceID == "" {
		return nil, errors.New("instance_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]calls.GatewayCallRecord, 0)
	for _, rec := range r.Gateway {
		if rec.InstanceID == instanceID && within(rec.TriggeredAt, from, to) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *MemoryRepo) ListAuditEvents(ctx context.Context, instanceID string, from, to time.Time) ([]audit.Event, error) {
	if instanceID == "" {
		return nil, errors.New("instance_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.Event, 0)
	for _, e := range r.Events {
		if e.InstanceID == instanceID && within(e.CreatedAt, from, to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func within(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}
