// Package interval implements half-open time ranges with an optional open end.
package interval

import "time"

// Interval is [Start, End). A nil End extends to +infinity.
type Interval struct {
	Start time.Time
	End   *time.Time
}

func New(start time.Time, end *time.Time) Interval {
	return Interval{Start: start, End: end}
}

func Closed(start, end time.Time) Interval {
	return Interval{Start: start, End: &end}
}

func OpenEnded(start time.Time) Interval {
	return Interval{Start: start}
}

// Contains reports whether instant falls in [Start, End).
func (i Interval) Contains(instant time.Time) bool {
	if instant.Before(i.Start) {
		return false
	}
	return i.End == nil || instant.Before(*i.End)
}

// Overlaps reports whether the two intervals share at least one instant.
// Touching boundaries (a.End == b.Start) do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return beforeEnd(i.Start, other.End) && beforeEnd(other.Start, i.End)
}

// Valid reports whether the interval is non-empty.
func (i Interval) Valid() bool {
	return i.End == nil || i.End.After(i.Start)
}

func Contains(i Interval, instant time.Time) bool {
	return i.Contains(instant)
}

func Overlaps(a, b Interval) bool {
	return a.Overlaps(b)
}

func beforeEnd(t time.Time, end *time.Time) bool {
	return end == nil || t.Before(*end)
}
