package dialer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(day, hour, minute int) time.Time {
	// March 2024: the 1st is a Friday, the 2nd a Saturday, the 3rd a Sunday.
	return time.Date(2024, time.March, day, hour, minute, 0, 0, time.UTC)
}

func TestIsWithinWindow(t *testing.T) {
	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"weekday before open", at(4, 7, 59), false},
		{"weekday open", at(4, 8, 0), true},
		{"weekday last minute", at(4, 18, 59), true},
		{"weekday close", at(4, 19, 0), false},
		{"friday afternoon", at(1, 15, 30), true},
		{"saturday morning", at(2, 9, 0), true},
		{"saturday last minute", at(2, 12, 59), true},
		{"saturday 13h", at(2, 13, 0), false},
		{"saturday 14h", at(2, 14, 0), false},
		{"sunday noon", at(3, 12, 0), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsWithinWindow(tc.now, false))
		})
	}
}

func TestIsWithinWindow_DebugOverrideAlwaysOpens(t *testing.T) {
	assert.True(t, IsWithinWindow(at(3, 3, 0), true))
	assert.True(t, IsWithinWindow(at(2, 22, 0), true))
}
