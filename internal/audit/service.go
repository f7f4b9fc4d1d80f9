package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Reader lists events for internal reporting.
type Reader interface {
	List(ctx context.Context, instanceID string, typ EventType, from, to time.Time) ([]Event, error)
}

// Service logs internal audit information.
//
// Callers should treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.InstanceID == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogDialerStats records the outcome counters of one cycle.
func (s *Service) LogDialerStats(ctx context.Context, instanceID string, stats DialerStats) error {
	meta, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return s.Append(ctx, Event{
		InstanceID: instanceID,
		Type:       EventTypeDialerStats,
		Message:    "dialer cycle finished",
		Metadata:   string(meta),
	})
}

// LogDialFailed records a dispatch that produced no history entry.
func (s *Service) LogDialFailed(ctx context.Context, instanceID, clientID, number, reason string) error {
	return s.Append(ctx, Event{
		InstanceID:    instanceID,
		Type:          EventTypeDialFailed,
		ClientID:      clientID,
		ContactNumber: number,
		Message:       reason,
	})
}

// LogCycleSkipped records why a cycle did not run.
func (s *Service) LogCycleSkipped(ctx context.Context, instanceID, reason string) error {
	return s.Append(ctx, Event{
		InstanceID: instanceID,
		Type:       EventTypeCycleSkipped,
		Message:    reason,
	})
}

// LogManualCycle records an operator-triggered cycle.
func (s *Service) LogManualCycle(ctx context.Context, instanceID, actorID, actorRole string, debug bool) error {
	meta, _ := json.Marshal(map[string]bool{"debug": debug})
	return s.Append(ctx, Event{
		InstanceID: instanceID,
		Type:       EventTypeManualCycle,
		ActorID:    actorID,
		ActorRole:  actorRole,
		Message:    "manual cycle requested",
		Metadata:   string(meta),
	})
}
