package dialer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"debt-collector/internal/tenant"
	"debt-collector/pkg/logger"
)

const (
	DefaultInterval    = 20 * time.Minute
	DefaultParallelism = 4
)

// InstanceLister lists the tenants the worker dials for.
type InstanceLister interface {
	ListActive(ctx context.Context) ([]tenant.Instance, error)
}

// CycleRunner runs one instance cycle. *Engine implements it.
type CycleRunner interface {
	RunCycle(ctx context.Context, inst tenant.Instance) (CycleReport, error)
}

// Worker runs a cycle for every active instance on a fixed interval.
//
// Instances are isolated from each other: an error or panic in one cycle is
// logged and never stops the others.
type Worker struct {
	instances    InstanceLister
	runner       CycleRunner
	interval     time.Duration
	parallelism  int
	queryTimeout time.Duration
}

func NewWorker(instances InstanceLister, runner CycleRunner, interval time.Duration, parallelism int) *Worker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}
	return &Worker{
		instances:    instances,
		runner:       runner,
		interval:     interval,
		parallelism:  parallelism,
		queryTimeout: defaultQueryTimeout,
	}
}

// WithQueryTimeout bounds the active-instance lookup of each pass.
func (w *Worker) WithQueryTimeout(d time.Duration) *Worker {
	if d > 0 {
		w.queryTimeout = d
	}
	return w
}

// RunOnce runs one cycle per active instance and waits for all of them.
//
// The returned error is non-nil only when the instance list cannot be loaded
// or ctx is cancelled; per-instance failures are reported in the logs.
func (w *Worker) RunOnce(ctx context.Context) ([]CycleReport, error) {
	log := logger.From(ctx)

	lctx, cancel := context.WithTimeout(ctx, w.queryTimeout)
	instances, err := w.instances.ListActive(lctx)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("dialer: list active instances: %w", err)
	}

	var (
		mu      sync.Mutex
		reports = make([]CycleReport, 0, len(instances))
	)

	g := new(errgroup.Group)
	g.SetLimit(w.parallelism)
	for _, inst := range instances {
		inst := inst
		g.Go(func() error {
			rep, err := w.runIsolated(ctx, inst)
			if err != nil {
				level := "error"
				if errors.Is(err, ErrConfiguration) {
					level = "configuration"
				}
				log.Error("instance cycle failed", "instance_id", inst.ID, "kind", level, "err", err)
			}
			mu.Lock()
			reports = append(reports, rep)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return reports, ctx.Err()
}

func (w *Worker) runIsolated(ctx context.Context, inst tenant.Instance) (rep CycleReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			rep = CycleReport{InstanceID: inst.ID}
			err = fmt.Errorf("dialer: panic in cycle for %s: %v", inst.ID, r)
		}
	}()
	return w.runner.RunCycle(ctx, inst)
}

// Start runs RunOnce immediately and then every interval until ctx is done.
func (w *Worker) Start(ctx context.Context) {
	log := logger.From(ctx)
	log.Info("dialer worker started", "interval", w.interval.String(), "parallelism", w.parallelism)

	w.tick(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("dialer worker stopped")
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	reports, err := w.RunOnce(ctx)
	if err != nil {
		logger.From(ctx).Error("dialer pass failed", "err", err)
		return
	}
	triggered := 0
	for _, r := range reports {
		triggered += r.Triggered
	}
	logger.From(ctx).Info("dialer pass finished", "instances", len(reports), "triggered", triggered)
}
