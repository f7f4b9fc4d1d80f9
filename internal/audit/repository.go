package audit

import (
	"context"
	"database/sql"
	"time"
)

// NOTE: PostgresRepo assumes an audit_events table with an INSERT-only policy.

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (
  id, instance_id, type, actor_id, actor_role, contact_number, client_id, message, metadata, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,NULLIF($9,'')::jsonb,$10
)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.InstanceID,
		string(e.Type),
		e.ActorID,
		e.ActorRole,
		e.ContactNumber,
		e.ClientID,
		e.Message,
		e.Metadata,
		e.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) List(ctx context.Context, instanceID string, typ EventType, from, to time.Time) ([]Event, error) {
	const q = `
SELECT id, instance_id, type, actor_id, actor_role, contact_number, client_id, message,
       COALESCE(metadata::text, ''), created_at
FROM audit_events
WHERE instance_id = $1 AND ($2 = '' OR type = $2) AND created_at >= $3 AND created_at < $4
ORDER BY created_at ASC
`
	if to.IsZero() {
		to = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	}
	rows, err := r.db.QueryContext(ctx, q, instanceID, string(typ), from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e   Event
			typ string
		)
		if err := rows.Scan(
			&e.ID,
			&e.InstanceID,
			&typ,
			&e.ActorID,
			&e.ActorRole,
			&e.ContactNumber,
			&e.ClientID,
			&e.Message,
			&e.Metadata,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.Type = EventType(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}
