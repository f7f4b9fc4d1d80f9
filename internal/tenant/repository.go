package tenant

import (
	"context"
	"database/sql"
	"errors"
)

var ErrNotFound = errors.New("tenant: not found")

// Repository is the read side of tenant configuration.
type Repository interface {
	ListActive(ctx context.Context) ([]Instance, error)
	Get(ctx context.Context, instanceID string) (Instance, error)
}

// NOTE: PostgresRepo assumes an `instances` table owned by the configuration
// surface. Policy and gateway columns are flattened on the same row.

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const instanceColumns = `
id, name, erp_type, active, debug_calls,
min_days_to_charge, dial_interval_hours, dials_per_day, channel_capacity,
gw_schema, gw_host, gw_port, gw_username, gw_password,
gw_channel_type, gw_trunk, gw_context, gw_extension,
updated_at
`

func (r *PostgresRepo) ListActive(ctx context.Context) ([]Instance, error) {
	q := `SELECT ` + instanceColumns + ` FROM instances WHERE active = TRUE ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Instance
	for rows.Next() {
		in, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) Get(ctx context.Context, instanceID string) (Instance, error) {
	q := `SELECT ` + instanceColumns + ` FROM instances WHERE id = $1`
	in, err := scanInstance(r.db.QueryRowContext(ctx, q, instanceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Instance{}, ErrNotFound
		}
		return Instance{}, err
	}
	return in, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstance(s rowScanner) (Instance, error) {
	var in Instance
	err := s.Scan(
		&in.ID,
		&in.Name,
		&in.ERPType,
		&in.Active,
		&in.DebugCalls,
		&in.Policy.MinDaysToCharge,
		&in.Policy.DialIntervalHours,
		&in.Policy.DialsPerDay,
		&in.Policy.ChannelCapacity,
		&in.Gateway.Schema,
		&in.Gateway.Host,
		&in.Gateway.Port,
		&in.Gateway.Username,
		&in.Gateway.Password,
		&in.Gateway.ChannelType,
		&in.Gateway.Trunk,
		&in.Gateway.Context,
		&in.Gateway.Extension,
		&in.UpdatedAt,
	)
	return in, err
}
