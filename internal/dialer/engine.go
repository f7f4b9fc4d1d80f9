package dialer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"debt-collector/internal/audit"
	"debt-collector/internal/bills"
	"debt-collector/internal/calls"
	"debt-collector/internal/metrics"
	"debt-collector/internal/tenant"
	"debt-collector/pkg/logger"
)

// ErrConfiguration marks a tenant whose cycle cannot run until an operator
// fixes its configuration.
var ErrConfiguration = errors.New("dialer: configuration error")

// Skip reasons reported in CycleReport.SkipReason.
const (
	SkipWindow = "window"
	SkipLease  = "lease"
	SkipConfig = "configuration"
)

// CycleReport summarises one instance cycle.
type CycleReport struct {
	InstanceID string `json:"instance_id"`
	Skipped    bool   `json:"skipped"`
	SkipReason string `json:"skip_reason,omitempty"`

	EligibleCount int `json:"eligible_count"`
	Candidates    int `json:"candidates"`
	Queued        int `json:"queued"`
	Triggered     int `json:"triggered"`
	Failed        int `json:"failed"`
	// Deferred counts queued candidates the limiter refused at dispatch time,
	// e.g. a number shared with a client dialed earlier in the same cycle.
	Deferred int `json:"deferred"`

	// Queue holds the dispatch order by client id.
	Queue []string `json:"queue"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// EngineConfig holds process-wide settings. Tenant policy is never read from
// here; it arrives with each instance.
type EngineConfig struct {
	Location     *time.Location
	Pause        time.Duration
	QueryTimeout time.Duration
	// Debug opens the window for every instance.
	Debug bool
}

// Engine runs dispatch cycles.
//
// Flow per instance: window gate, configuration check, cycle lease, overdue
// bills, eligibility, contact resolution, scheduling, sequential dispatch.
type Engine struct {
	Bills      bills.Repository
	History    calls.HistoryRepository
	Dispatcher *Dispatcher
	Lease      Lease
	Audit      AuditLog

	Config EngineConfig

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewEngine(billsRepo bills.Repository, callRepo calls.Repository, dispatcher *Dispatcher, lease Lease, auditLog AuditLog, cfg EngineConfig) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = defaultQueryTimeout
	}
	return &Engine{
		Bills:      billsRepo,
		History:    callRepo,
		Dispatcher: dispatcher,
		Lease:      lease,
		Audit:      auditLog,
		Config:     cfg,
		Now:        time.Now,
		Sleep:      sleepCtx,
	}
}

// RunCycle runs one dispatch cycle for inst.
//
// A closed window is not an error. Configuration problems return an error
// wrapping ErrConfiguration. Cancellation is honoured between candidates and
// returns the context error with the partial report.
func (e *Engine) RunCycle(ctx context.Context, inst tenant.Instance) (CycleReport, error) {
	log := logger.From(ctx).With("instance_id", inst.ID)
	ctx = logger.With(ctx, log)

	started := e.now()
	now := started.In(e.location())
	rep := CycleReport{InstanceID: inst.ID, StartedAt: started, Queue: []string{}}

	if !IsWithinWindow(now, inst.DebugCalls || e.Config.Debug) {
		log.Debug("outside operating window", "local_time", now.Format(time.RFC3339))
		return e.skip(ctx, rep, SkipWindow, false), nil
	}

	policy := inst.Policy
	if err := inst.Gateway.WithDefaults().Validate(); err != nil {
		log.Error("instance misconfigured, cycle skipped", "err", err)
		return e.skip(ctx, rep, SkipConfig, true), fmt.Errorf("%w: instance %s: %w", ErrConfiguration, inst.ID, err)
	}

	if e.Lease != nil {
		acquired, err := e.Lease.Acquire(ctx, inst.ID)
		switch {
		case err != nil:
			log.Warn("cycle lease unavailable, running without it", "err", err)
		case !acquired:
			log.Info("cycle already running elsewhere")
			return e.skip(ctx, rep, SkipLease, true), nil
		default:
			defer func() {
				if err := e.Lease.Release(context.WithoutCancel(ctx), inst.ID); err != nil {
					log.Warn("release cycle lease", "err", err)
				}
			}()
		}
	}

	qctx, cancel := context.WithTimeout(ctx, e.Config.QueryTimeout)
	overdue, err := e.Bills.ListOverdue(qctx, inst.ID)
	cancel()
	if err != nil {
		metrics.CyclesTotal.WithLabelValues(inst.ID, "error").Inc()
		return rep, fmt.Errorf("dialer: list overdue bills for %s: %w", inst.ID, err)
	}

	aggs, eligible := Aggregate(overdue, policy.MinDaysToCharge)
	rep.EligibleCount = eligible

	limiter := NewRateLimiter(e.History, policy, e.location(), e.Config.QueryTimeout)
	candidates := make([]CallCandidate, 0, len(aggs))
	for _, agg := range aggs {
		if c, ok := ResolveContact(ctx, agg, limiter, now); ok {
			candidates = append(candidates, c)
		}
	}
	rep.Candidates = len(candidates)

	queue := Prioritize(candidates, policy.ChannelCapacity)
	rep.Queued = len(queue)
	for _, c := range queue {
		rep.Queue = append(rep.Queue, c.ClientID)
	}
	log.Info("dispatch queue built",
		"eligible", rep.EligibleCount,
		"candidates", rep.Candidates,
		"queue_size", rep.Queued,
		"capacity", policy.ChannelCapacity,
	)

	runErr := e.dispatch(ctx, log, inst, limiter, queue, &rep)

	rep.FinishedAt = e.now()
	e.finish(ctx, log, rep)
	return rep, runErr
}

func (e *Engine) dispatch(ctx context.Context, log *slog.Logger, inst tenant.Instance, limiter *RateLimiter, queue []CallCandidate, rep *CycleReport) error {
	dispatched := 0
	for _, c := range queue {
		if err := ctx.Err(); err != nil {
			log.Warn("cycle cancelled", "remaining", rep.Queued-rep.Triggered-rep.Failed-rep.Deferred)
			return err
		}
		if dispatched > 0 && e.Config.Pause > 0 {
			if err := e.sleep(ctx, e.Config.Pause); err != nil {
				log.Warn("cycle cancelled", "remaining", rep.Queued-rep.Triggered-rep.Failed-rep.Deferred)
				return err
			}
		}

		allowed, err := limiter.CanCall(ctx, inst.ID, c.ContactNumber, e.now().In(e.location()))
		if err != nil || !allowed {
			rep.Deferred++
			if err != nil {
				log.Warn("rate limiter re-check failed", "client_id", c.ClientID, "err", err)
			}
			continue
		}

		dispatched++
		ok, _, err := e.Dispatcher.Trigger(ctx, inst, c)
		if ok {
			rep.Triggered++
			continue
		}
		rep.Failed++
		if err != nil {
			log.Debug("candidate skipped", "client_id", c.ClientID, "err", err)
		}
	}
	return nil
}

func (e *Engine) finish(ctx context.Context, log *slog.Logger, rep CycleReport) {
	metrics.ObserveCycle(rep.InstanceID, "completed", rep.EligibleCount, rep.Queued, rep.FinishedAt.Sub(rep.StartedAt).Seconds())
	if e.Audit != nil {
		stats := audit.DialerStats{
			Eligible:  rep.EligibleCount,
			QueueSize: rep.Queued,
			Triggered: rep.Triggered,
			Failed:    rep.Failed,
		}
		if err := e.Audit.LogDialerStats(context.WithoutCancel(ctx), rep.InstanceID, stats); err != nil {
			log.Error("audit dialer_stats", "err", err)
		}
	}
	log.Info("cycle finished",
		"eligible", rep.EligibleCount,
		"queue_size", rep.Queued,
		"triggered", rep.Triggered,
		"failed", rep.Failed,
		"deferred", rep.Deferred,
	)
}

func (e *Engine) skip(ctx context.Context, rep CycleReport, reason string, audited bool) CycleReport {
	rep.Skipped = true
	rep.SkipReason = reason
	rep.FinishedAt = e.now()

	result := "skipped_" + reason
	if reason == SkipConfig {
		result = "config_error"
	}
	metrics.ObserveCycle(rep.InstanceID, result, 0, 0, 0)

	if audited && e.Audit != nil {
		if err := e.Audit.LogCycleSkipped(context.WithoutCancel(ctx), rep.InstanceID, reason); err != nil {
			logger.From(ctx).Error("audit cycle_skipped", "err", err)
		}
	}
	return rep
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) sleep(ctx context.Context, d time.Duration) error {
	if e.Sleep != nil {
		return e.Sleep(ctx, d)
	}
	return sleepCtx(ctx, d)
}

func (e *Engine) location() *time.Location {
	if e.Config.Location != nil {
		return e.Config.Location
	}
	return time.Local
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
