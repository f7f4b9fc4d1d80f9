package reporting

import (
	"context"
	"time"

	"debt-collector/internal/audit"
	"debt-collector/internal/calls"
)

// Sources adapts the call log and audit stores to Repository.
type Sources struct {
	Calls calls.Reader
	Audit audit.Reader
}

func (s Sources) ListHistory(ctx context.Context, instanceID string, from, to time.Time) ([]calls.HistoryEntry, error) {
	return s.Calls.ListHistory(ctx, instanceID, from, to)
}

func (s Sources) ListGatewayCalls(ctx context.Context, instanceID string, from, to time.Time) ([]calls.GatewayCallRecord, error) {
	return s.Calls.ListGatewayCalls(ctx, instanceID, from, to)
}

func (s Sources) ListAuditEvents(ctx context.Context, instanceID string, from, to time.Time) ([]audit.Event, error) {
	if s.Audit == nil {
		return nil, nil
	}
	return s.Audit.List(ctx, instanceID, "", from, to)
}
