package app

import "time"

// Window is a half-open instant interval [Start, End), always exactly one
// hour wide. Bounds carry the reference zone; callers convert to UTC for
// store comparisons.
type Window struct {
	Start time.Time
	End   time.Time
}

// ComputeWindow derives the candidate window for a run: now is shifted by
// the configured lead time and truncated down to the start of its containing
// hour in the reference zone. With a one-hour window and an hourly cadence
// the windows tile the timeline without gaps or overlap, so a run is safe
// to repeat within the same hour.
func ComputeWindow(now time.Time, leadTime time.Duration, zone *time.Location) Window {
	target := now.In(zone).Add(leadTime)
	start := time.Date(target.Year(), target.Month(), target.Day(), target.Hour(), 0, 0, 0, zone)
	return Window{Start: start, End: start.Add(time.Hour)}
}
