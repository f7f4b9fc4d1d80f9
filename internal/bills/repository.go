package bills

import (
	"context"
	"database/sql"
	"fmt"

	"debt-collector/pkg/utils"
)

// Repository is the dialer's view of the overdue bills store.
//
// ListOverdue returns bills in the store's natural order. That order is the
// encounter order used for client grouping and tie-breaking, so implementations
// must keep it stable between calls.
type Repository interface {
	ListOverdue(ctx context.Context, instanceID string) ([]Bill, error)
	AppendCallMarks(ctx context.Context, marks []CallMark) error
}

// NOTE: PostgresRepo assumes the following tables exist:
// - bills (written by the sync pipeline)
// - bill_call_marks (append-only, one row per bill per successful dispatch)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) ListOverdue(ctx context.Context, instanceID string) ([]Bill, error) {
	const q = `
SELECT id, instance_id, client_id, owner_name, amount_open_minor, expired_age_days,
       phone_mobile, phone_landline, phone_messaging, bill_ref, due_status
FROM bills
WHERE instance_id = $1 AND due_status = 'overdue'
ORDER BY seq ASC
`
	rows, err := r.db.QueryContext(ctx, q, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Bill
	for rows.Next() {
		var b Bill
		if err := rows.Scan(
			&b.ID,
			&b.InstanceID,
			&b.ClientID,
			&b.OwnerName,
			&b.AmountOpenMinor,
			&b.ExpiredAgeDays,
			&b.Phones.Mobile,
			&b.Phones.Landline,
			&b.Phones.Messaging,
			&b.BillRef,
			&b.DueStatus,
		); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) AppendCallMarks(ctx context.Context, marks []CallMark) error {
	if len(marks) == 0 {
		return nil
	}
	const q = `
INSERT INTO bill_call_marks (bill_ref, instance_id, contact_number, status, occurred_at)
VALUES ($1,$2,$3,$4,$5)
`
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		for _, m := range marks {
			if _, err := tx.ExecContext(ctx, q, m.BillRef, m.InstanceID, m.ContactNumber, m.Status, m.OccurredAt); err != nil {
				return fmt.Errorf("bills: append call mark %s: %w", m.BillRef, err)
			}
		}
		return nil
	})
}
