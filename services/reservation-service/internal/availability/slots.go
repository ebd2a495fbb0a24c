package availability

import "time"

// MaxHorizon is how far ahead customers may book. Slot queries beyond it
// return nothing and drafts beyond it are rejected.
const MaxHorizon = 30 * 24 * time.Hour

type Interval struct {
	Start time.Time
	End   time.Time
}

// Slots returns candidate start times within [window.Start, window.End) where a
// reservation of length duration would not overlap any busy interval.
//
// Slots step by the service duration, so they are contiguous and
// non-overlapping. The month overview deliberately reuses this exact function:
// a day is flagged available iff the rule that offers bookable times would
// produce at least one slot, so the two views can never disagree.
//
// All times are expected to be in the business time zone.
func Slots(window Interval, duration time.Duration, busy []Interval, now time.Time) []time.Time {
	if duration <= 0 {
		return nil
	}
	if !window.End.After(window.Start) {
		return nil
	}
	if window.Start.After(now.Add(MaxHorizon)) {
		return nil
	}

	var slots []time.Time
	for t := window.Start; !t.Add(duration).After(window.End); t = t.Add(duration) {
		if !t.After(now) {
			continue
		}
		if !overlapsAny(t, t.Add(duration), busy) {
			slots = append(slots, t)
		}
	}
	return slots
}

// Overlaps reports whether two half-open intervals [a.Start, a.End) and
// [b.Start, b.End) intersect. Back-to-back intervals do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	candidate := Interval{Start: start, End: end}
	for _, b := range busy {
		if Overlaps(candidate, b) {
			return true
		}
	}
	return false
}
