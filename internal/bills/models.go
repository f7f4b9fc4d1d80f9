package bills

import "time"

// Bill is one overdue receivable as handed over by the ERP sync pipeline.
//
// Bills are read-only inside a dial cycle. The only write the dialer performs
// is appending a CallMark to a bill's call history.
//
// Money invariant: amounts are integer minor units (cents). Never float.
type Bill struct {
	ID         string `json:"id" db:"id"`
	InstanceID string `json:"instance_id" db:"instance_id"`
	ClientID   string `json:"client_id" db:"client_id"`
	OwnerName  string `json:"owner_name" db:"owner_name"`

	AmountOpenMinor int64 `json:"amount_open_minor" db:"amount_open_minor"`
	ExpiredAgeDays  int   `json:"expired_age" db:"expired_age_days"`

	Phones Phones `json:"phones"`

	// BillRef is the stable human-readable reference (the ERP full id) used as
	// caller id and as the key for call marks. May be empty on malformed rows.
	BillRef string `json:"full_id" db:"bill_ref"`

	DueStatus DueStatus `json:"due_status" db:"due_status"`
}

// Phones keeps the raw contact fields in their dialing precedence:
// mobile first, then landline, then messaging.
type Phones struct {
	Mobile    string `json:"telefone_celular" db:"phone_mobile"`
	Landline  string `json:"telefone_comercial" db:"phone_landline"`
	Messaging string `json:"whatsapp" db:"phone_messaging"`
}

// Ordered returns the raw values in precedence order.
func (p Phones) Ordered() []string {
	return []string{p.Mobile, p.Landline, p.Messaging}
}

type DueStatus string

const (
	DueStatusOverdue DueStatus = "overdue"
	DueStatusDueSoon DueStatus = "due_soon"
	DueStatusCurrent DueStatus = "current"
)

// CallMark is appended to a bill's call history for every successful dispatch
// that referenced it.
type CallMark struct {
	BillRef       string    `json:"bill_ref" db:"bill_ref"`
	InstanceID    string    `json:"instance_id" db:"instance_id"`
	ContactNumber string    `json:"number" db:"contact_number"`
	Status        string    `json:"status" db:"status"`
	OccurredAt    time.Time `json:"occurred_at" db:"occurred_at"`
}

const CallMarkTriggered = "triggered"
