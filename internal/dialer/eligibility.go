package dialer

import "debt-collector/internal/bills"

// ClientAggregate is every eligible bill of one client folded into a single
// record.
type ClientAggregate struct {
	InstanceID        string
	ClientID          string
	OwnerName         string
	TotalValueMinor   int64
	BillRefs          []string
	MaxExpiredAgeDays int
	Phones            bills.Phones
}

// Aggregate keeps bills at least minDaysToCharge days overdue and groups them
// by client in first-encounter order.
//
// eligibleCount is the number of bills that passed the age filter. Bills
// without a client id count as eligible but are never aggregated.
func Aggregate(in []bills.Bill, minDaysToCharge int) (out []ClientAggregate, eligibleCount int) {
	index := map[string]int{}
	seenRefs := map[string]map[string]struct{}{}

	for _, b := range in {
		if b.ExpiredAgeDays < minDaysToCharge {
			continue
		}
		eligibleCount++
		if b.ClientID == "" {
			continue
		}

		i, ok := index[b.ClientID]
		if !ok {
			i = len(out)
			index[b.ClientID] = i
			seenRefs[b.ClientID] = map[string]struct{}{}
			out = append(out, ClientAggregate{
				InstanceID:        b.InstanceID,
				ClientID:          b.ClientID,
				OwnerName:         b.OwnerName,
				MaxExpiredAgeDays: b.ExpiredAgeDays,
				Phones:            b.Phones,
			})
		}

		agg := &out[i]
		agg.TotalValueMinor += b.AmountOpenMinor
		if b.ExpiredAgeDays > agg.MaxExpiredAgeDays {
			agg.MaxExpiredAgeDays = b.ExpiredAgeDays
		}
		if agg.OwnerName == "" {
			agg.OwnerName = b.OwnerName
		}
		fillPhones(&agg.Phones, b.Phones)

		if b.BillRef != "" {
			if _, dup := seenRefs[b.ClientID][b.BillRef]; !dup {
				seenRefs[b.ClientID][b.BillRef] = struct{}{}
				agg.BillRefs = append(agg.BillRefs, b.BillRef)
			}
		}
	}
	return out, eligibleCount
}

// fillPhones completes empty fields of dst from src. The first bill's numbers win.
func fillPhones(dst *bills.Phones, src bills.Phones) {
	if dst.Mobile == "" {
		dst.Mobile = src.Mobile
	}
	if dst.Landline == "" {
		dst.Landline = src.Landline
	}
	if dst.Messaging == "" {
		dst.Messaging = src.Messaging
	}
}
