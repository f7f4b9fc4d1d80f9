package dialer

import "sort"

// Prioritize orders candidates most overdue first and truncates to capacity.
//
// The sort is stable: candidates with equal age keep their input order, which
// is the order their clients first appeared in the bill list. The input slice
// is not modified.
func Prioritize(candidates []CallCandidate, capacity int) []CallCandidate {
	if capacity <= 0 || len(candidates) == 0 {
		return []CallCandidate{}
	}
	queue := make([]CallCandidate, len(candidates))
	copy(queue, candidates)
	sort.SliceStable(queue, func(i, j int) bool {
		return queue[i].MaxExpiredAgeDays > queue[j].MaxExpiredAgeDays
	})
	if len(queue) > capacity {
		queue = queue[:capacity]
	}
	return queue
}
