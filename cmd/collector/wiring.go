package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"debt-collector/internal/audit"
	"debt-collector/internal/bills"
	"debt-collector/internal/calls"
	"debt-collector/internal/config"
	"debt-collector/internal/dialer"
	"debt-collector/internal/reporting"
	"debt-collector/internal/store/mongostore"
	"debt-collector/internal/tenant"
	"debt-collector/pkg/utils"
)

const pingTimeout = 2 * time.Second

type auditStore interface {
	audit.Repository
	audit.Reader
}

// stores is one backing store seen through the domain repositories.
type stores struct {
	instances tenant.Repository
	bills     bills.Repository
	calls     calls.Repository
	audit     auditStore
	ping      func(ctx context.Context) error
	close     func()
}

func openStores(ctx context.Context, cfg config.Config, log *slog.Logger) (*stores, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverMongo:
		ms, err := mongostore.Open(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, fmt.Errorf("mongo init: %w", err)
		}
		if err := ms.EnsureIndexes(ctx); err != nil {
			_ = ms.Close(context.WithoutCancel(ctx))
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		log.Info("store ready", "driver", "mongo", "database", cfg.Mongo.Database)
		return &stores{
			instances: ms.Tenants(),
			bills:     ms.Bills(),
			calls:     ms.Calls(),
			audit:     ms.Audit(),
			ping:      func(ctx context.Context) error { return ms.Ping(ctx, pingTimeout) },
			close: func() {
				if err := ms.Close(context.Background()); err != nil {
					log.Warn("mongo close", "err", err)
				}
			},
		}, nil

	default:
		db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			return nil, fmt.Errorf("postgres init: %w", err)
		}
		log.Info("store ready", "driver", "postgres", "host", cfg.DB.Host, "database", cfg.DB.Name)
		return &stores{
			instances: tenant.NewPostgresRepo(db),
			bills:     bills.NewPostgresRepo(db),
			calls:     calls.NewPostgresRepo(db),
			audit:     audit.NewPostgresRepo(db),
			ping:      func(ctx context.Context) error { return utils.HealthCheck(ctx, db, pingTimeout) },
			close:     func() { _ = db.Close() },
		}, nil
	}
}

// openLease returns the Redis lease when Redis is configured and a
// process-local lease otherwise.
func openLease(ctx context.Context, cfg config.Config, log *slog.Logger) (dialer.Lease, func(), error) {
	addr := cfg.RedisAddr()
	if addr == "" {
		log.Warn("REDIS_HOST not set, cycle lease is local to this process")
		return dialer.NewMemoryLease(), func() {}, nil
	}
	rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: addr})
	if err != nil {
		return nil, nil, fmt.Errorf("redis init: %w", err)
	}
	return dialer.NewRedisLease(rdb, cfg.Dialer.LeaseTTL), func() { _ = rdb.Close() }, nil
}

// app is the fully wired dispatch engine.
type app struct {
	stores    *stores
	audit     *audit.Service
	engine    *dialer.Engine
	worker    *dialer.Worker
	reporting *reporting.Service

	closeLease func()
}

func buildApp(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	lease, closeLease, err := openLease(ctx, cfg, log)
	if err != nil {
		st.close()
		return nil, err
	}

	auditSvc := audit.NewService(st.audit)
	dispatcher := &dialer.Dispatcher{
		Gateways:    dialer.NewARIGatewayFactory(cfg.Dialer.GatewayTimeout),
		History:     st.calls,
		Correlation: st.calls,
		Marks:       st.bills,
		Audit:       auditSvc,
		Timeout:     cfg.Dialer.QueryTimeout,
	}
	engine := dialer.NewEngine(st.bills, st.calls, dispatcher, lease, auditSvc, dialer.EngineConfig{
		Location:     cfg.Location(),
		Pause:        cfg.Dialer.Pause,
		QueryTimeout: cfg.Dialer.QueryTimeout,
		Debug:        cfg.Dialer.Debug,
	})

	return &app{
		stores:     st,
		audit:      auditSvc,
		engine:     engine,
		worker:     dialer.NewWorker(st.instances, engine, cfg.Dialer.Interval, cfg.Dialer.Parallelism).WithQueryTimeout(cfg.Dialer.QueryTimeout),
		reporting:  reporting.NewService(reporting.Sources{Calls: st.calls, Audit: st.audit}),
		closeLease: closeLease,
	}, nil
}

func (a *app) Close() {
	a.closeLease()
	a.stores.close()
}
