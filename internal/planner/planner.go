// Package planner computes which bulletin dates a sync should cover.
package planner

import (
	"context"
	"time"
)

const day = 24 * time.Hour

// EarliestDater reports the earliest NAV date already stored, or nil when
// nothing is stored.
type EarliestDater interface {
	EarliestNavDate(ctx context.Context) (*time.Time, error)
}

// Window is an inclusive date range.
type Window struct {
	Start time.Time
	End   time.Time
}

// Dates expands the window with PlanRange.
func (w Window) Dates() []time.Time {
	return PlanRange(w.Start, w.End)
}

// LatestBusinessDay returns the most recent weekday strictly before ref.
func LatestBusinessDay(ref time.Time) time.Time {
	d := truncate(ref).Add(-day)
	for isWeekend(d) {
		d = d.Add(-day)
	}
	return d
}

// PlanRange lists weekdays from end down to start, inclusive. It is empty
// when start is after end.
func PlanRange(start, end time.Time) []time.Time {
	start, end = truncate(start), truncate(end)
	var out []time.Time
	for d := end; !d.Before(start); d = d.Add(-day) {
		if !isWeekend(d) {
			out = append(out, d)
		}
	}
	return out
}

// EarliestKnownDate asks the store for its earliest NAV date.
func EarliestKnownDate(ctx context.Context, s EarliestDater) (*time.Time, error) {
	return s.EarliestNavDate(ctx)
}

// MonthsWindow covers the months (of thirty days each) immediately before the
// earliest stored date. With an empty store it ends at the latest business day.
func MonthsWindow(earliest *time.Time, now time.Time, months int) Window {
	var end time.Time
	if earliest != nil {
		end = truncate(*earliest).Add(-day)
	} else {
		end = LatestBusinessDay(now)
	}
	return Window{Start: end.AddDate(0, 0, -months*30), End: end}
}

// YearsWindow covers years*365 days ending on now.
func YearsWindow(now time.Time, years int) Window {
	end := truncate(now)
	return Window{Start: end.AddDate(0, 0, -(years*365 - 1)), End: end}
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// truncate drops the clock, keeping the calendar date in UTC.
func truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
