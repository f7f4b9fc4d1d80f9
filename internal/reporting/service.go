package reporting

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"debt-collector/internal/audit"
	"debt-collector/internal/calls"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting.
//
// IMPORTANT:
// - Methods must enforce instance filtering.
// - Implementations query immutable sources only (history log, correlation records, audit).

type Repository interface {
	ListHistory(ctx context.Context, instanceID string, from, to time.Time) ([]calls.HistoryEntry, error)
	ListGatewayCalls(ctx context.Context, instanceID string, from, to time.Time) ([]calls.GatewayCallRecord, error)
	ListAuditEvents(ctx context.Context, instanceID string, from, to time.Time) ([]audit.Event, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) DialerSummary(ctx context.Context, req DialerSummaryRequest) (DialerSummary, error) {
	if req.InstanceID == "" {
		return DialerSummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return DialerSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return DialerSummary{}, errors.New("reporting: repository not configured")
	}

	history, err := s.repo.ListHistory(ctx, req.InstanceID, req.Range.From, req.Range.To)
	if err != nil {
		return DialerSummary{}, err
	}
	records, err := s.repo.ListGatewayCalls(ctx, req.InstanceID, req.Range.From, req.Range.To)
	if err != nil {
		return DialerSummary{}, err
	}
	events, err := s.repo.ListAuditEvents(ctx, req.InstanceID, req.Range.From, req.Range.To)
	if err != nil {
		return DialerSummary{}, err
	}

	out := DialerSummary{
		InstanceID:     req.InstanceID,
		Range:          req.Range,
		TriggeredByDay: map[string]int{},
		GatewayCalls:   len(records),
	}

	correlated := make(map[string]struct{}, len(records))
	for _, rec := range records {
		correlated[correlationKey(rec.ContactNumber, rec.TriggeredAt)] = struct{}{}
	}

	numbers := map[string]struct{}{}
	clients := map[string]struct{}{}
	bills := map[string]struct{}{}
	for _, e := range history {
		if e.Outcome != calls.OutcomeTriggered {
			continue
		}
		out.CallsTriggered++
		numbers[e.ContactNumber] = struct{}{}
		if e.ClientID != "" {
			clients[e.ClientID] = struct{}{}
		}
		for _, ref := range e.BillRefs {
			bills[ref] = struct{}{}
		}
		out.TriggeredByDay[e.TriggeredAt.UTC().Format("2006-01-02")]++
		if _, ok := correlated[correlationKey(e.ContactNumber, e.TriggeredAt)]; !ok {
			out.UncorrelatedCalls++
		}
	}
	out.UniqueNumbers = len(numbers)
	out.UniqueClients = len(clients)
	out.BillsReferenced = len(bills)

	for _, ev := range events {
		switch ev.Type {
		case audit.EventTypeDialFailed:
			out.FailedDispatches++
		case audit.EventTypeCycleSkipped:
			out.SkippedCycles++
		case audit.EventTypeDialerStats:
			out.Cycles++
			var st audit.DialerStats
			if err := json.Unmarshal([]byte(ev.Metadata), &st); err == nil {
				out.EligibleTotal += st.Eligible
				out.QueuedTotal += st.QueueSize
			}
		case audit.EventTypeManualCycle:
			// counted through its dialer_stats event
		}
	}

	if attempts := out.CallsTriggered + out.FailedDispatches; attempts > 0 {
		out.SuccessRate = float64(out.CallsTriggered) / float64(attempts)
	}
	return out, nil
}

func correlationKey(number string, at time.Time) string {
	return number + "|" + at.UTC().Format(time.RFC3339Nano)
}
