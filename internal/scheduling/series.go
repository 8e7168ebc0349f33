package scheduling

import (
	"fmt"
	"sort"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
)

// MaxSeriesCount caps how many occurrences one request may produce.
const MaxSeriesCount = 200

// SkipReason explains why a series candidate was not booked.
type SkipReason string

const (
	SkipHoliday            SkipReason = "holiday"
	SkipConflict           SkipReason = "conflict"
	SkipSeriesConflict     SkipReason = "series_conflict"
	SkipTeacherUnavailable SkipReason = "teacher_unavailable"
	SkipStudentUnavailable SkipReason = "student_unavailable"
)

// SeriesSpec describes a recurring pattern: ByDay days of every IntervalWeeks-th
// week, starting with the week that contains Anchor, at Anchor's time of day.
type SeriesSpec struct {
	Anchor        time.Time
	Duration      time.Duration
	IntervalWeeks int
	Count         int
	ByDay         []int
}

func (s SeriesSpec) Validate() error {
	switch {
	case s.Anchor.IsZero():
		return fmt.Errorf("%w: start date is required", ErrInvalid)
	case s.Duration <= 0:
		return fmt.Errorf("%w: duration must be positive", ErrInvalid)
	case s.IntervalWeeks < 1:
		return fmt.Errorf("%w: interval must be at least 1 week", ErrInvalid)
	case s.Count < 1 || s.Count > MaxSeriesCount:
		return fmt.Errorf("%w: count must be between 1 and %d", ErrInvalid, MaxSeriesCount)
	case len(s.ByDay) == 0:
		return fmt.Errorf("%w: by_day must not be empty", ErrInvalid)
	}
	for _, d := range s.ByDay {
		if d < 0 || d > 6 {
			return fmt.Errorf("%w: by_day value %d out of range", ErrInvalid, d)
		}
	}
	return nil
}

// days returns ByDay sorted ascending without duplicates
func (s SeriesSpec) days() []int {
	seen := make(map[int]bool, len(s.ByDay))
	var out []int
	for _, d := range s.ByDay {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Ints(out)
	return out
}

// ExpandSeries produces exactly Count candidate intervals in chronological order.
// Weeks start on Sunday in loc. Days of the first week that fall before the
// anchor are passed over without being counted.
func ExpandSeries(spec SeriesSpec, loc *time.Location) ([]Interval, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}

	anchor := spec.Anchor.In(loc)
	weekStart := time.Date(anchor.Year(), anchor.Month(), anchor.Day()-int(anchor.Weekday()), 0, 0, 0, 0, loc)
	days := spec.days()

	out := make([]Interval, 0, spec.Count)
	for week := 0; len(out) < spec.Count; week += spec.IntervalWeeks {
		for _, d := range days {
			start := time.Date(weekStart.Year(), weekStart.Month(), weekStart.Day()+week*7+d,
				anchor.Hour(), anchor.Minute(), anchor.Second(), 0, loc)
			if start.Before(anchor) {
				continue
			}
			out = append(out, NewInterval(start, spec.Duration))
			if len(out) == spec.Count {
				break
			}
		}
	}
	return out, nil
}

// Span returns the smallest interval covering all candidates
func Span(candidates []Interval) Interval {
	if len(candidates) == 0 {
		return Interval{}
	}
	span := candidates[0]
	for _, c := range candidates[1:] {
		span.Start = minTime(span.Start, c.Start)
		span.End = maxTime(span.End, c.End)
	}
	return span
}

// SeriesValidator decides candidate by candidate whether a series occurrence can
// be booked. It remembers what was accepted so a series never overlaps itself.
type SeriesValidator struct {
	TeacherID   int64
	StudentID   int64
	Resolver    *Resolver
	Holidays    map[string]bool
	Lessons     []*model.Lesson
	TeacherFree []Interval
	StudentFree []Interval

	accepted []Interval
}

// Check returns the reason candidate must be skipped, or "" when it can be booked.
func (v *SeriesValidator) Check(candidate Interval) SkipReason {
	if v.touchesHoliday(candidate) {
		return SkipHoliday
	}
	if HasConflict(v.TeacherID, candidate, v.Lessons) || HasConflict(v.StudentID, candidate, v.Lessons) {
		return SkipConflict
	}
	for _, a := range v.accepted {
		if Overlaps(a, candidate) {
			return SkipSeriesConflict
		}
	}
	if !ContainedIn(candidate, v.TeacherFree) {
		return SkipTeacherUnavailable
	}
	if !ContainedIn(candidate, v.StudentFree) {
		return SkipStudentUnavailable
	}
	return ""
}

// Accept records a booked candidate
func (v *SeriesValidator) Accept(candidate Interval) {
	v.accepted = append(v.accepted, candidate)
}

func (v *SeriesValidator) touchesHoliday(candidate Interval) bool {
	if len(v.Holidays) == 0 {
		return false
	}
	r := v.Resolver
	if r == nil {
		r = NewResolver(nil)
	}
	return r.IsHoliday(candidate.Start, v.Holidays) ||
		r.IsHoliday(candidate.End.Add(-time.Nanosecond), v.Holidays)
}

// ContainedIn reports whether candidate lies inside one of the intervals
func ContainedIn(candidate Interval, intervals []Interval) bool {
	for _, i := range intervals {
		if i.Contains(candidate) {
			return true
		}
	}
	return false
}
