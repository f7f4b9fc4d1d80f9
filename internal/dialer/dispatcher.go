package dialer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"debt-collector/internal/audit"
	"debt-collector/internal/bills"
	"debt-collector/internal/calls"
	"debt-collector/internal/metrics"
	"debt-collector/internal/telephony"
	"debt-collector/internal/tenant"
	"debt-collector/pkg/logger"
)

// GatewayFactory builds the telephony gateway for one tenant's config.
type GatewayFactory func(cfg tenant.GatewayConfig) telephony.Gateway

// NewARIGatewayFactory returns a factory of ARI clients sharing one HTTP client.
func NewARIGatewayFactory(timeout time.Duration) GatewayFactory {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	hc := &http.Client{Timeout: timeout}
	return func(cfg tenant.GatewayConfig) telephony.Gateway {
		return telephony.NewARIClient(telephony.ARIConfig{
			BaseURL:  cfg.BaseURL(),
			Username: cfg.Username,
			Password: cfg.Password,
			Timeout:  timeout,
		}, hc)
	}
}

// AuditLog is the subset of audit.Service the engine writes to.
type AuditLog interface {
	LogDialFailed(ctx context.Context, instanceID, clientID, number, reason string) error
	LogDialerStats(ctx context.Context, instanceID string, stats audit.DialerStats) error
	LogCycleSkipped(ctx context.Context, instanceID, reason string) error
}

// CallMarkWriter appends call marks to bills.
type CallMarkWriter interface {
	AppendCallMarks(ctx context.Context, marks []bills.CallMark) error
}

// Dispatcher places one call and records its outcome.
//
// Writes are additive only. A call the gateway did not accept leaves no
// history entry, so it never consumes a daily-cap slot.
type Dispatcher struct {
	Gateways    GatewayFactory
	History     calls.HistoryRepository
	Correlation calls.CorrelationRepository
	Marks       CallMarkWriter
	Audit       AuditLog

	// Timeout bounds each store write after the gateway answered.
	// Zero means 5s.
	Timeout time.Duration

	Now   func() time.Time
	NewID func() string
}

// BuildOriginateRequest maps a candidate onto the tenant's dial plan.
func BuildOriginateRequest(gw tenant.GatewayConfig, c CallCandidate) telephony.OriginateRequest {
	gw = gw.WithDefaults()
	return telephony.OriginateRequest{
		Endpoint:      fmt.Sprintf("%s/%s/%s", gw.ChannelType, gw.Trunk, c.ContactNumber),
		Extension:     gw.Extension,
		Context:       gw.Context,
		Priority:      telephony.DefaultPriority,
		CallerID:      CallerID(c),
		TimeoutMillis: telephony.DefaultTimeoutMillis,
	}
}

// CallerID is the candidate's primary bill ref, or "<client> - <owner>" when
// it has none, clipped to the gateway limit.
func CallerID(c CallCandidate) string {
	if ref := primaryRef(c); ref != "" {
		return telephony.TruncateCallerID(ref)
	}
	return telephony.TruncateCallerID(fmt.Sprintf("%s - %s", c.ClientID, c.OwnerName))
}

func primaryRef(c CallCandidate) string {
	if len(c.BillRefs) == 0 {
		return ""
	}
	return c.BillRefs[0]
}

// Trigger dispatches c through inst's gateway.
//
// success reports whether the gateway accepted the call. A non-nil error with
// success=true means the call was placed but recording it partially failed.
func (d *Dispatcher) Trigger(ctx context.Context, inst tenant.Instance, c CallCandidate) (success bool, gatewayCallID string, err error) {
	log := logger.From(ctx).With("instance_id", inst.ID, "client_id", c.ClientID, "number", c.ContactNumber)

	gw := d.Gateways(inst.Gateway)
	req := BuildOriginateRequest(inst.Gateway, c)

	start := time.Now()
	res, err := gw.Originate(ctx, req)
	metrics.GatewayLatencySeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		reason := failureReason(err)
		metrics.DispatchFailuresTotal.WithLabelValues(inst.ID, reason).Inc()
		log.Warn("dispatch failed", "reason", reason, "err", err)
		if d.Audit != nil {
			aerr := d.write(ctx, func(ctx context.Context) error {
				return d.Audit.LogDialFailed(ctx, inst.ID, c.ClientID, c.ContactNumber, err.Error())
			})
			if aerr != nil {
				log.Error("audit dial_failed", "err", aerr)
			}
		}
		return false, "", err
	}

	now := d.now()
	metrics.CallsTriggeredTotal.WithLabelValues(inst.ID).Inc()

	// The call is placed: record it even if ctx is cancelled meanwhile.
	ctx = context.WithoutCancel(ctx)

	var errs []error
	entry := calls.HistoryEntry{
		ID:            d.newID(),
		InstanceID:    inst.ID,
		ContactNumber: c.ContactNumber,
		ClientID:      c.ClientID,
		BillRefs:      append([]string(nil), c.BillRefs...),
		TriggeredAt:   now,
		Outcome:       calls.OutcomeTriggered,
	}
	if err := d.write(ctx, func(ctx context.Context) error { return d.History.AppendHistory(ctx, entry) }); err != nil {
		errs = append(errs, fmt.Errorf("append history: %w", err))
	}

	rec := calls.GatewayCallRecord{
		GatewayCallID: res.CallID,
		ChannelName:   res.ChannelName,
		CallerID:      res.CallerID,
		BillRef:       primaryRef(c),
		InstanceID:    inst.ID,
		ContactNumber: c.ContactNumber,
		TriggeredAt:   now,
	}
	if err := d.write(ctx, func(ctx context.Context) error { return d.Correlation.UpsertGatewayCall(ctx, rec) }); err != nil {
		errs = append(errs, fmt.Errorf("upsert gateway call: %w", err))
	}

	if d.Marks != nil && len(c.BillRefs) > 0 {
		marks := make([]bills.CallMark, 0, len(c.BillRefs))
		for _, ref := range c.BillRefs {
			marks = append(marks, bills.CallMark{
				BillRef:       ref,
				InstanceID:    inst.ID,
				ContactNumber: c.ContactNumber,
				Status:        bills.CallMarkTriggered,
				OccurredAt:    now,
			})
		}
		if err := d.write(ctx, func(ctx context.Context) error { return d.Marks.AppendCallMarks(ctx, marks) }); err != nil {
			errs = append(errs, fmt.Errorf("append call marks: %w", err))
		}
	}

	if len(errs) > 0 {
		metrics.DispatchFailuresTotal.WithLabelValues(inst.ID, "persist").Inc()
		err := errors.Join(errs...)
		log.Error("call placed but not fully recorded", "gateway_call_id", res.CallID, "err", err)
		return true, res.CallID, err
	}

	log.Info("call triggered", "gateway_call_id", res.CallID, "channel", res.ChannelName)
	return true, res.CallID, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, telephony.ErrGatewayStatus):
		return "gateway_status"
	case errors.Is(err, telephony.ErrMalformedAck):
		return "malformed_ack"
	case errors.Is(err, telephony.ErrInvalidRequest):
		return "invalid_request"
	default:
		return "transport"
	}
}

func (d *Dispatcher) write(ctx context.Context, fn func(ctx context.Context) error) error {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Dispatcher) newID() string {
	if d.NewID != nil {
		return d.NewID()
	}
	return uuid.NewString()
}
