package reporting

import "time"

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// DialerSummaryRequest requests aggregated dispatch metrics.
// Tenant isolation: InstanceID is required.

type DialerSummaryRequest struct {
	InstanceID string    `json:"instance_id"`
	Range      TimeRange `json:"range"`
}

type DialerSummary struct {
	InstanceID string    `json:"instance_id"`
	Range      TimeRange `json:"range"`

	CallsTriggered   int `json:"calls_triggered"`
	FailedDispatches int `json:"failed_dispatches"`
	UniqueNumbers    int `json:"unique_numbers"`
	UniqueClients    int `json:"unique_clients"`
	BillsReferenced  int `json:"bills_referenced"`

	// GatewayCalls counts correlation records; UncorrelatedCalls counts history
	// entries with no matching record for the same number and instant.
	GatewayCalls      int `json:"gateway_calls"`
	UncorrelatedCalls int `json:"uncorrelated_calls"`

	Cycles        int `json:"cycles"`
	EligibleTotal int `json:"eligible_total"`
	QueuedTotal   int `json:"queued_total"`
	SkippedCycles int `json:"skipped_cycles"`

	// TriggeredByDay is keyed by YYYY-MM-DD in UTC.
	TriggeredByDay map[string]int `json:"triggered_by_day"`

	// SuccessRate is triggered / (triggered + failed).
	SuccessRate float64 `json:"success_rate"`
}
