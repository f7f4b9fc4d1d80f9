// Package mongostore keeps tenants, bills and the call log in MongoDB, using
// the collection layout the ERP sync pipeline writes.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names shared with the sync pipeline and the dashboard.
const (
	ColInstances    = "instance_config"
	ColBills        = "bills"
	ColActionLog    = "history_action_log"
	ColGatewayCalls = "gateway_calls"
)

type Config struct {
	URI      string
	Database string

	MaxPoolSize    uint64
	ConnectTimeout time.Duration
	PingTimeout    time.Duration
}

func (c Config) withDefaults() Config {
	out := c
	if out.Database == "" {
		out.Database = "collector"
	}
	if out.MaxPoolSize == 0 {
		out.MaxPoolSize = 20
	}
	if out.ConnectTimeout <= 0 {
		out.ConnectTimeout = 5 * time.Second
	}
	if out.PingTimeout <= 0 {
		out.PingTimeout = 2 * time.Second
	}
	return out
}

// Store owns the client. Repositories borrow its database handle.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var ErrURIRequired = errors.New("mongostore: uri is required")

// Open connects and pings.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	cfg = cfg.withDefaults()
	if cfg.URI == "" {
		return nil, ErrURIRequired
	}

	opts := options.Client().ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetSocketTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongostore: ping: %w", err)
	}

	return &Store{client: client, db: client.Database(cfg.Database)}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping checks the primary with a timeout.
func (s *Store) Ping(ctx context.Context, timeout time.Duration) error {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.client.Ping(pingCtx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongostore: ping: %w", err)
	}
	return nil
}

func (s *Store) Tenants() *TenantRepo { return &TenantRepo{col: s.db.Collection(ColInstances)} }
func (s *Store) Bills() *BillRepo { return &BillRepo{col: s.db.Collection(ColBills)} }
func (s *Store) Audit() *AuditRepo { return &AuditRepo{col: s.db.Collection(ColActionLog)} }

func (s *Store) Calls() *CallRepo {
	return &CallRepo{
		log:     s.db.Collection(ColActionLog),
		gateway: s.db.Collection(ColGatewayCalls),
	}
}

// EnsureIndexes creates the indexes the dialer's queries rely on. Existing
// indexes with the same name are left alone.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	specs := []struct {
		col   string
		model mongo.IndexModel
	}{
		{ColBills, mongo.IndexModel{
			Keys:    bson.D{{Key: "instance_full_id", Value: 1}, {Key: "vencimento_status", Value: 1}},
			Options: options.Index().SetName("bills_instance_status"),
		}},
		{ColBills, mongo.IndexModel{
			Keys:    bson.D{{Key: "full_id", Value: 1}},
			Options: options.Index().SetName("bills_full_id").SetUnique(true),
		}},
		// Rate limiter: count today's dials and find the latest one per number.
		{ColActionLog, mongo.IndexModel{
			Keys: bson.D{
				{Key: "instance_full_id", Value: 1},
				{Key: "action", Value: 1},
				{Key: "details.number", Value: 1},
				{Key: "occurred_at", Value: -1},
			},
			Options: options.Index().SetName("action_log_dialer"),
		}},
		{ColActionLog, mongo.IndexModel{
			Keys:    bson.D{{Key: "instance_full_id", Value: 1}, {Key: "occurred_at", Value: -1}},
			Options: options.Index().SetName("action_log_instance_time"),
		}},
		{ColGatewayCalls, mongo.IndexModel{
			Keys:    bson.D{{Key: "instance_full_id", Value: 1}, {Key: "triggered_at", Value: 1}},
			Options: options.Index().SetName("gateway_calls_instance_time"),
		}},
	}

	for _, sp := range specs {
		if _, err := s.db.Collection(sp.col).Indexes().CreateOne(ctx, sp.model); err != nil && !isIndexExistsError(err) {
			return fmt.Errorf("mongostore: index on %s: %w", sp.col, err)
		}
	}
	return nil
}

// IndexOptionsConflict (85) and IndexKeySpecsConflict (86).
func isIndexExistsError(err error) bool {
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		return ce.Code == 85 || ce.Code == 86
	}
	return false
}
