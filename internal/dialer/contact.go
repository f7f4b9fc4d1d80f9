package dialer

import (
	"context"
	"strings"
	"time"

	"debt-collector/internal/bills"
	"debt-collector/pkg/logger"
)

const minNumberDigits = 8

// CallCandidate is one client with the single number chosen for this cycle.
type CallCandidate struct {
	ClientID          string
	ContactNumber     string
	OwnerName         string
	TotalValueMinor   int64
	BillRefs          []string
	MaxExpiredAgeDays int
}

// Limiter decides whether a number may be dialed now.
type Limiter interface {
	CanCall(ctx context.Context, tenantID, number string, now time.Time) (bool, error)
}

// SanitizeNumber keeps ASCII digits only.
func SanitizeNumber(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ContactCandidates returns the dialable numbers of p in precedence order
// (mobile, landline, messaging), sanitized, at least 8 digits, deduplicated.
func ContactCandidates(p bills.Phones) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, raw := range p.Ordered() {
		n := SanitizeNumber(raw)
		if len(n) < minNumberDigits {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// ResolveContact picks the first number of agg the limiter accepts.
// ok is false when the client has no callable number this cycle.
//
// A limiter error rejects only that number; the next one is still tried.
func ResolveContact(ctx context.Context, agg ClientAggregate, limiter Limiter, now time.Time) (CallCandidate, bool) {
	for _, number := range ContactCandidates(agg.Phones) {
		allowed, err := limiter.CanCall(ctx, agg.InstanceID, number, now)
		if err != nil {
			logger.From(ctx).Warn("rate limiter query failed",
				"instance_id", agg.InstanceID,
				"client_id", agg.ClientID,
				"number", number,
				"err", err,
			)
			continue
		}
		if !allowed {
			continue
		}
		return CallCandidate{
			ClientID:          agg.ClientID,
			ContactNumber:     number,
			OwnerName:         agg.OwnerName,
			TotalValueMinor:   agg.TotalValueMinor,
			BillRefs:          append([]string(nil), agg.BillRefs...),
			MaxExpiredAgeDays: agg.MaxExpiredAgeDays,
		}, true
	}
	return CallCandidate{}, false
}
