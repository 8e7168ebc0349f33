// Package scheduling holds the pure calendar algebra of the lesson scheduler:
// interval math, conflict detection, availability resolution, slot search and
// recurring series expansion. Nothing here touches storage; callers pass in a
// consistent snapshot and get deterministic results back.
package scheduling

import (
	"sort"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
)

// Interval is a half-open span [Start, End) of absolute instants.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewInterval builds an interval starting at start lasting d
func NewInterval(start time.Time, d time.Duration) Interval {
	return Interval{Start: start, End: start.Add(d)}
}

// FromRange converts a stored time range
func FromRange(r model.TimeRange) Interval {
	return Interval{Start: r.Start, End: r.End}
}

// LessonInterval returns the calendar span of a lesson
func LessonInterval(l *model.Lesson) Interval {
	return Interval{Start: l.StartTime, End: l.EndTime}
}

// Valid reports whether End is strictly after Start
func (i Interval) Valid() bool {
	return i.End.After(i.Start)
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Contains reports whether other lies entirely inside i
func (i Interval) Contains(other Interval) bool {
	return !other.Start.Before(i.Start) && !other.End.After(i.End)
}

// Overlaps reports whether a and b share any instant. Touching endpoints do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && a.End.After(b.Start)
}

// Intersect returns the common part of a and b; ok is false when it is empty.
func Intersect(a, b Interval) (Interval, bool) {
	res := Interval{Start: maxTime(a.Start, b.Start), End: minTime(a.End, b.End)}
	if !res.Valid() {
		return Interval{}, false
	}
	return res, true
}

// Subtract removes every cut from base and returns what remains, sorted by start.
func Subtract(base Interval, cuts []Interval) []Interval {
	if !base.Valid() {
		return nil
	}
	sorted := make([]Interval, 0, len(cuts))
	for _, c := range cuts {
		if c.Valid() && Overlaps(base, c) {
			sorted = append(sorted, c)
		}
	}
	sortIntervals(sorted)

	var out []Interval
	cursor := base.Start
	for _, c := range sorted {
		if c.Start.After(cursor) {
			out = append(out, Interval{Start: cursor, End: minTime(c.Start, base.End)})
		}
		if c.End.After(cursor) {
			cursor = c.End
		}
		if !cursor.Before(base.End) {
			return out
		}
	}
	if cursor.Before(base.End) {
		out = append(out, Interval{Start: cursor, End: base.End})
	}
	return out
}

// SubtractAll applies Subtract to every interval of a sorted list
func SubtractAll(bases, cuts []Interval) []Interval {
	var out []Interval
	for _, b := range bases {
		out = append(out, Subtract(b, cuts)...)
	}
	return out
}

// Merge sorts intervals and coalesces the ones that overlap or touch.
// Invalid intervals are dropped.
func Merge(intervals []Interval) []Interval {
	list := make([]Interval, 0, len(intervals))
	for _, i := range intervals {
		if i.Valid() {
			list = append(list, i)
		}
	}
	if len(list) == 0 {
		return nil
	}
	sortIntervals(list)

	out := []Interval{list[0]}
	for _, cur := range list[1:] {
		last := &out[len(out)-1]
		if !cur.Start.After(last.End) {
			if cur.End.After(last.End) {
				last.End = cur.End
			}
			continue
		}
		out = append(out, cur)
	}
	return out
}

// IntersectAll returns the pairwise intersection of two sorted, non-overlapping lists.
func IntersectAll(a, b []Interval) []Interval {
	var out []Interval
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if common, ok := Intersect(a[i], b[j]); ok {
			out = append(out, common)
		}
		if a[i].End.Before(b[j].End) {
			i++
		} else {
			j++
		}
	}
	return out
}

// Clip intersects every interval with bounds, dropping the empty ones
func Clip(intervals []Interval, bounds Interval) []Interval {
	var out []Interval
	for _, i := range intervals {
		if c, ok := Intersect(i, bounds); ok {
			out = append(out, c)
		}
	}
	return out
}

func sortIntervals(list []Interval) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Start.Equal(list[j].Start) {
			return list[i].End.Before(list[j].End)
		}
		return list[i].Start.Before(list[j].Start)
	})
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
