package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - instance_id is required for tenancy isolation.
// - audit writes are best-effort; a failed write never aborts a dial cycle.
//
// Storage (Postgres): table audit_events with an INSERT-only policy.

type Event struct {
	ID         string `json:"id" db:"id"`
	InstanceID string `json:"instance_id" db:"instance_id"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	// ActorID is the operator causing the event, empty for the scheduler.
	ActorID   string `json:"actor_id,omitempty" db:"actor_id"`
	ActorRole string `json:"actor_role,omitempty" db:"actor_role"`

	// Target identifiers (optional, depending on the event type).
	ContactNumber string `json:"number,omitempty" db:"contact_number"`
	ClientID      string `json:"client_id,omitempty" db:"client_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	// EventTypeDialerStats summarises one completed cycle.
	EventTypeDialerStats  EventType = "dialer_stats"
	// EventTypeDialFailed records a dispatch the gateway did not accept.
	EventTypeDialFailed   EventType = "dial_failed"
	EventTypeCycleSkipped EventType = "cycle_skipped"
	// EventTypeManualCycle records an operator-triggered cycle.
	EventTypeManualCycle  EventType = "manual_cycle"
)

// DialerStats is the metadata payload of a dialer_stats event.
type DialerStats struct {
	Eligible  int `json:"eligible"`
	QueueSize int `json:"queue_size"`
	Triggered int `json:"triggered"`
	Failed    int `json:"failed"`
}
