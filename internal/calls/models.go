package calls

import "time"

// HistoryEntry is one dispatch decision that reached the gateway.
//
// Multi-tenant invariant: InstanceID is required on every row.
//
// The history log is append-only. Entries are never updated or deleted, and
// they are the only input to the rate limiter, so a process restart never
// forgets a dial.
type HistoryEntry struct {
	ID            string   `json:"id" db:"id"`
	InstanceID    string   `json:"instance_id" db:"instance_id"`
	ContactNumber string   `json:"number" db:"contact_number"`
	ClientID      string   `json:"client_id" db:"client_id"`
	BillRefs      []string `json:"bill_refs" db:"bill_refs"`

	TriggeredAt time.Time `json:"occurred_at" db:"triggered_at"`
	Outcome     Outcome   `json:"outcome" db:"outcome"`
}

type Outcome string

const (
	// OutcomeTriggered means the gateway accepted the originate request.
	// Only triggered entries count toward the daily cap and the interval.
	OutcomeTriggered Outcome = "triggered"
)

// GatewayCallRecord correlates the gateway's call id with the bill that drove
// the call, so CDRs scraped later can be linked back.
//
// Upserts are keyed by GatewayCallID: writing the same id twice leaves a single
// record.
type GatewayCallRecord struct {
	GatewayCallID string    `json:"call_id" db:"gateway_call_id"`
	ChannelName   string    `json:"channel_name" db:"channel_name"`
	CallerID      string    `json:"caller_id" db:"caller_id"`
	BillRef       string    `json:"bill_ref" db:"bill_ref"`
	InstanceID    string    `json:"instance_id" db:"instance_id"`
	ContactNumber string    `json:"number" db:"contact_number"`
	TriggeredAt   time.Time `json:"triggered_at" db:"triggered_at"`
}
