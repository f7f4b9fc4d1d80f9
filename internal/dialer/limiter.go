package dialer

import (
	"context"
	"time"

	"debt-collector/internal/calls"
	"debt-collector/internal/metrics"
	"debt-collector/internal/tenant"
)

// Limit reasons, reported in Decision.Reason and on the limiter metric.
const (
	ReasonAllowed   = "allowed"
	ReasonDailyCap  = "daily_cap"
	ReasonInterval  = "interval"
	ReasonQueryFail = "query_error"
)

const defaultQueryTimeout = 5 * time.Second

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed bool
	Reason  string

	// TodayCount and LastTriggered describe the history the decision saw.
	TodayCount    int
	LastTriggered time.Time
}

// RateLimiter enforces the per-number daily cap and minimum interval of one
// tenant's policy against the durable history log. It keeps no state of its own.
type RateLimiter struct {
	History  calls.HistoryRepository
	Policy   tenant.DialPolicy
	Location *time.Location
	Timeout  time.Duration
}

func NewRateLimiter(history calls.HistoryRepository, policy tenant.DialPolicy, loc *time.Location, timeout time.Duration) *RateLimiter {
	if loc == nil {
		loc = time.Local
	}
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	return &RateLimiter{History: history, Policy: policy, Location: loc, Timeout: timeout}
}

// CanCall implements Limiter.
func (l *RateLimiter) CanCall(ctx context.Context, tenantID, number string, now time.Time) (bool, error) {
	d, err := l.Check(ctx, tenantID, number, now)
	if err != nil {
		return false, err
	}
	return d.Allowed, nil
}

// Check evaluates the daily cap first, then the interval since the most recent
// triggered call on any day.
func (l *RateLimiter) Check(ctx context.Context, tenantID, number string, now time.Time) (Decision, error) {
	qctx, cancel := context.WithTimeout(ctx, l.Timeout)
	defer cancel()

	count, err := l.History.CountSince(qctx, tenantID, number, StartOfLocalDay(now, l.Location))
	if err != nil {
		metrics.LimiterRejectionsTotal.WithLabelValues(tenantID, ReasonQueryFail).Inc()
		return Decision{Reason: ReasonQueryFail}, err
	}
	if count >= l.Policy.DialsPerDay {
		metrics.LimiterRejectionsTotal.WithLabelValues(tenantID, ReasonDailyCap).Inc()
		return Decision{Reason: ReasonDailyCap, TodayCount: count}, nil
	}

	last, ok, err := l.History.MostRecent(qctx, tenantID, number)
	if err != nil {
		metrics.LimiterRejectionsTotal.WithLabelValues(tenantID, ReasonQueryFail).Inc()
		return Decision{Reason: ReasonQueryFail, TodayCount: count}, err
	}
	if ok && now.Sub(last.TriggeredAt) < l.Policy.DialInterval() {
		metrics.LimiterRejectionsTotal.WithLabelValues(tenantID, ReasonInterval).Inc()
		return Decision{Reason: ReasonInterval, TodayCount: count, LastTriggered: last.TriggeredAt}, nil
	}

	d := Decision{Allowed: true, Reason: ReasonAllowed, TodayCount: count}
	if ok {
		d.LastTriggered = last.TriggeredAt
	}
	return d, nil
}

// StartOfLocalDay is midnight of now's calendar day in loc.
func StartOfLocalDay(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t := now.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
