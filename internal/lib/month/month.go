// Package month contains calendar arithmetic for month-anchored billing periods.
package month

import "time"

// DaysIn returns the number of days in the given month.
func DaysIn(year int, m time.Month) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Anchored returns midnight UTC of day in the given month, clamped to the
// month's last day. The month may be out of range; it is normalized first.
func Anchored(year int, m time.Month, day int) time.Time {
	first := time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
	if last := DaysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

