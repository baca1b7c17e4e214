package usage

import (
	"time"

	"github.com/magabrotheeeer/storytime-billing/internal/lib/month"
)

// Period is a billing period. Start is inclusive; End is the last second
// before the next period starts.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// BillingPeriod derives the period containing now.
//
// With an anchor, periods start on the anchor's day of month at UTC midnight
// and advance one month at a time; anchors on days 29-31 clamp to the last
// day of shorter months. Without one, the period is the UTC calendar month.
func BillingPeriod(anchor *time.Time, now time.Time) Period {
	now = now.UTC()
	if anchor == nil {
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return Period{Start: start, End: start.AddDate(0, 1, 0).Add(-time.Second)}
	}

	a := anchor.UTC()
	day := a.Day()
	first := month.Anchored(a.Year(), a.Month(), day)

	var start time.Time
	if now.Before(first) {
		start = first
	} else {
		start = month.Anchored(now.Year(), now.Month(), day)
		if start.After(now) {
			start = month.Anchored(now.Year(), now.Month()-1, day)
		}
	}
	next := month.Anchored(start.Year(), start.Month()+1, day)
	return Period{Start: start, End: next.Add(-time.Second)}
}
