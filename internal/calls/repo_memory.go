package calls

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory call log useful for tests.
// It is not intended for production use: history would not survive a restart.
type MemoryRepo struct {
	mu      sync.Mutex
	history []HistoryEntry
	gateway map[string]GatewayCallRecord
	order   []string

	// QueryErr, when set, is returned by CountSince and MostRecent.
	QueryErr error
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{gateway: map[string]GatewayCallRecord{}}
}

func (r *MemoryRepo) AppendHistory(ctx context.Context, e HistoryEntry) error {
	if e.ID == "" || e.InstanceID == "" || e.ContactNumber == "" {
		return ErrInvalidEntry
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e.BillRefs = append([]string(nil), e.BillRefs...)
	r.history = append(r.history, e)
	return nil
}

func (r *MemoryRepo) CountSince(ctx context.Context, instanceID, number string, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.QueryErr != nil {
		return 0, r.QueryErr
	}
	n := 0
	for _, e := range r.history {
		if e.InstanceID == instanceID && e.ContactNumber == number && e.Outcome == OutcomeTriggered && !e.TriggeredAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepo) MostRecent(ctx context.Context, instanceID, number string) (HistoryEntry, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.QueryErr != nil {
		return HistoryEntry{}, false, r.QueryErr
	}
	var (
		best  HistoryEntry
		found bool
	)
	for _, e := range r.history {
		if e.InstanceID != instanceID || e.ContactNumber != number || e.Outcome != OutcomeTriggered {
			continue
		}
		if !found || e.TriggeredAt.After(best.TriggeredAt) {
			best = e
			found = true
		}
	}
	return best, found, nil
}

func (r *MemoryRepo) UpsertGatewayCall(ctx context.Context, rec GatewayCallRecord) error {
	if rec.GatewayCallID == "" || rec.InstanceID == "" {
		return ErrInvalidEntry
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.gateway[rec.GatewayCallID]; !ok {
		r.order = append(r.order, rec.GatewayCallID)
	}
	r.gateway[rec.GatewayCallID] = rec
	return nil
}

func (r *MemoryRepo) ListHistory(ctx context.Context, instanceID string, from, to time.Time) ([]HistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []HistoryEntry
	for _, e := range r.history {
		if e.InstanceID == instanceID && inRange(e.TriggeredAt, from, to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *MemoryRepo) ListGatewayCalls(ctx context.Context, instanceID string, from, to time.Time) ([]GatewayCallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []GatewayCallRecord
	for _, id := range r.order {
		rec := r.gateway[id]
		if rec.InstanceID == instanceID && inRange(rec.TriggeredAt, from, to) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// History returns a copy of every appended entry.
func (r *MemoryRepo) History() []HistoryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]HistoryEntry, len(r.history))
	copy(out, r.history)
	return out
}

// GatewayCalls returns a copy of the correlation records in first-write order.
func (r *MemoryRepo) GatewayCalls() []GatewayCallRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]GatewayCallRecord, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.gateway[id])
	}
	return out
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}
