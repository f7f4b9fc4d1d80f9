package dialer

import "time"

// Operating hours, local time. End hours are exclusive.
const (
	windowOpenHour        = 8
	weekdayWindowEndHour  = 19
	saturdayWindowEndHour = 13
)

// IsWithinWindow reports whether outbound collection calls may be placed at now.
//
// now must already be expressed in the operating timezone. debugOverride
// always authorizes and is meant for manual verification only.
func IsWithinWindow(now time.Time, debugOverride bool) bool {
	if debugOverride {
		return true
	}
	h := now.Hour()
	switch now.Weekday() {
	case time.Sunday:
		return false
	case time.Saturday:
		return h >= windowOpenHour && h < saturdayWindowEndHour
	default:
		return h >= windowOpenHour && h < weekdayWindowEndHour
	}
}
