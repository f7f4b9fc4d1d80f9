package calls

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

var ErrInvalidEntry = errors.New("calls: invalid entry")

// HistoryRepository is the persistence contract the rate limiter depends on.
//
// It MUST be append-only. No Update/Delete methods are provided.
type HistoryRepository interface {
	AppendHistory(ctx context.Context, e HistoryEntry) error
	// CountSince counts triggered entries for (instance, number) with
	// TriggeredAt >= since.
	CountSince(ctx context.Context, instanceID, number string, since time.Time) (int, error)
	// MostRecent returns the latest triggered entry for (instance, number)
	// regardless of day. ok is false when none exists.
	MostRecent(ctx context.Context, instanceID, number string) (e HistoryEntry, ok bool, err error)
}

// CorrelationRepository stores gateway call ids.
type CorrelationRepository interface {
	UpsertGatewayCall(ctx context.Context, rec GatewayCallRecord) error
}

// Reader serves the reporting surface.
type Reader interface {
	ListHistory(ctx context.Context, instanceID string, from, to time.Time) ([]HistoryEntry, error)
	ListGatewayCalls(ctx context.Context, instanceID string, from, to time.Time) ([]GatewayCallRecord, error)
}

// Repository bundles every call-log concern one backing store provides.
type Repository interface {
	HistoryRepository
	CorrelationRepository
	Reader
}

// NOTE: PostgresRepo assumes the following tables exist:
// - dial_history (immutable append-only)
// - gateway_calls (projection keyed by gateway_call_id)
//
// and an index on dial_history (instance_id, contact_number, triggered_at DESC).

type PostgresRepo struct {
	db *sql.DB
	tm *pgtype.Map
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db, tm: pgtype.NewMap()}
}

func (r *PostgresRepo) AppendHistory(ctx context.Context, e HistoryEntry) error {
	if e.ID == "" || e.InstanceID == "" || e.ContactNumber == "" {
		return ErrInvalidEntry
	}
	const q = `
INSERT INTO dial_history (
  id, instance_id, contact_number, client_id, bill_refs, triggered_at, outcome
) VALUES (
  $1,$2,$3,$4,$5,$6,$7
)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.InstanceID,
		e.ContactNumber,
		e.ClientID,
		nonNilRefs(e.BillRefs),
		e.TriggeredAt,
		string(e.Outcome),
	)
	return err
}

func (r *PostgresRepo) CountSince(ctx context.Context, instanceID, number string, since time.Time) (int, error) {
	const q = `
SELECT COUNT(*)
FROM dial_history
WHERE instance_id = $1 AND contact_number = $2 AND outcome = $3 AND triggered_at >= $4
`
	var n int
	if err := r.db.QueryRowContext(ctx, q, instanceID, number, string(OutcomeTriggered), since).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *PostgresRepo) MostRecent(ctx context.Context, instanceID, number string) (HistoryEntry, bool, error) {
	const q = `
SELECT id, instance_id, contact_number, client_id, bill_refs, triggered_at, outcome
FROM dial_history
WHERE instance_id = $1 AND contact_number = $2 AND outcome = $3
ORDER BY triggered_at DESC
LIMIT 1
`
	e, err := r.scanHistory(r.db.QueryRowContext(ctx, q, instanceID, number, string(OutcomeTriggered)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return HistoryEntry{}, false, nil
		}
		return HistoryEntry{}, false, err
	}
	return e, true, nil
}

func (r *PostgresRepo) UpsertGatewayCall(ctx context.Context, rec GatewayCallRecord) error {
	if rec.GatewayCallID == "" || rec.InstanceID == "" {
		return ErrInvalidEntry
	}
	const q = `
INSERT INTO gateway_calls (
  gateway_call_id, instance_id, channel_name, caller_id, bill_ref, contact_number, triggered_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7
)
ON CONFLICT (gateway_call_id)
DO UPDATE SET
  channel_name = EXCLUDED.channel_name,
  caller_id = EXCLUDED.caller_id,
  bill_ref = EXCLUDED.bill_ref,
  contact_number = EXCLUDED.contact_number,
  triggered_at = EXCLUDED.triggered_at
`
	_, err := r.db.ExecContext(ctx, q,
		rec.GatewayCallID,
		rec.InstanceID,
		rec.ChannelName,
		rec.CallerID,
		rec.BillRef,
		rec.ContactNumber,
		rec.TriggeredAt,
	)
	return err
}

func (r *PostgresRepo) ListHistory(ctx context.Context, instanceID string, from, to time.Time) ([]HistoryEntry, error) {
	const q = `
SELECT id, instance_id, contact_number, client_id, bill_refs, triggered_at, outcome
FROM dial_history
WHERE instance_id = $1 AND triggered_at >= $2 AND triggered_at < $3
ORDER BY triggered_at ASC
`
	rows, err := r.db.QueryContext(ctx, q, instanceID, from, upperBound(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		e, err := r.scanHistory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ListGatewayCalls(ctx context.Context, instanceID string, from, to time.Time) ([]GatewayCallRecord, error) {
	const q = `
SELECT gateway_call_id, channel_name, caller_id, bill_ref, instance_id, contact_number, triggered_at
FROM gateway_calls
WHERE instance_id = $1 AND triggered_at >= $2 AND triggered_at < $3
ORDER BY triggered_at ASC
`
	rows, err := r.db.QueryContext(ctx, q, instanceID, from, upperBound(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GatewayCallRecord
	for rows.Next() {
		var rec GatewayCallRecord
		if err := rows.Scan(
			&rec.GatewayCallID,
			&rec.ChannelName,
			&rec.CallerID,
			&rec.BillRef,
			&rec.InstanceID,
			&rec.ContactNumber,
			&rec.TriggeredAt,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// upperBound maps a zero "to" onto an open upper bound.
func upperBound(to time.Time) time.Time {
	if to.IsZero() {
		return time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	}
	return to
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresRepo) scanHistory(s rowScanner) (HistoryEntry, error) {
	var (
		e       HistoryEntry
		outcome string
	)
	if err := s.Scan(
		&e.ID,
		&e.InstanceID,
		&e.ContactNumber,
		&e.ClientID,
		r.tm.SQLScanner(&e.BillRefs),
		&e.TriggeredAt,
		&outcome,
	); err != nil {
		return HistoryEntry{}, err
	}
	e.Outcome = Outcome(outcome)
	return e, nil
}

func nonNilRefs(refs []string) []string {
	if refs == nil {
		return []string{}
	}
	return refs
}
