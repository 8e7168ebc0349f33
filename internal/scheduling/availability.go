package scheduling

import (
	"fmt"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
)

// Snapshot is a consistent read of everything that shapes one user's calendar.
type Snapshot struct {
	Rules      []model.WeeklyRule
	Exceptions []model.AvailabilityException
	Holidays   []model.Holiday
	Lessons    []*model.Lesson
}

// Resolver turns availability data into concrete free intervals. Weekly rules and
// holiday days are interpreted as wall-clock values in the resolver's location.
type Resolver struct {
	loc *time.Location
}

// NewResolver creates a resolver for loc; nil means UTC
func NewResolver(loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{loc: loc}
}

func (r *Resolver) Location() *time.Location {
	return r.loc
}

// FreeIntervals computes the free time of userID inside [from, to).
//
// Per calendar day the weekly windows are used unless the day has an exception,
// which replaces them verbatim. Holiday days are dropped entirely and also cut out
// of every other window. The merged windows are then reduced by the user's
// scheduled and completed lessons.
func (r *Resolver) FreeIntervals(userID int64, snap Snapshot, from, to time.Time) ([]Interval, error) {
	bounds := Interval{Start: from, End: to}
	if !bounds.Valid() {
		return nil, fmt.Errorf("%w: range end must be after start", ErrInvalid)
	}

	windows, blackouts := r.openWindows(userID, snap, bounds)
	cuts := append(blackouts, BusyIntervals(userID, snap.Lessons)...)

	return SubtractAll(Clip(windows, bounds), cuts), nil
}

// openWindows expands rules and exceptions for every day touching bounds.
// It returns the merged open windows and the holiday day spans.
func (r *Resolver) openWindows(userID int64, snap Snapshot, bounds Interval) ([]Interval, []Interval) {
	rulesByDay := make(map[time.Weekday][]model.WeeklyRule)
	for _, rule := range snap.Rules {
		if rule.UserID != 0 && rule.UserID != userID {
			continue
		}
		rulesByDay[time.Weekday(rule.DayOfWeek)] = append(rulesByDay[time.Weekday(rule.DayOfWeek)], rule)
	}

	exceptions := make(map[string]model.AvailabilityException, len(snap.Exceptions))
	for _, ex := range snap.Exceptions {
		if ex.UserID != 0 && ex.UserID != userID {
			continue
		}
		exceptions[model.DateKey(ex.Date)] = ex
	}

	holidays := HolidaySet(snap.Holidays)

	var windows, blackouts []Interval
	for day := r.dayStart(bounds.Start); day.Before(bounds.End); day = r.nextDay(day) {
		key := model.DateKey(day)

		if holidays[key] {
			blackouts = append(blackouts, Interval{Start: day, End: r.nextDay(day)})
			continue
		}

		if ex, ok := exceptions[key]; ok {
			for _, slot := range ex.Slots {
				windows = append(windows, FromRange(slot))
			}
			continue
		}

		for _, rule := range rulesByDay[day.Weekday()] {
			windows = append(windows, Interval{
				Start: rule.StartTime.On(day, r.loc),
				End:   rule.EndTime.On(day, r.loc),
			})
		}
	}

	return Merge(windows), blackouts
}

// IsHoliday reports whether t falls on a holiday day in the resolver's location
func (r *Resolver) IsHoliday(t time.Time, holidays map[string]bool) bool {
	return holidays[model.DateKey(t.In(r.loc))]
}

// DayOf returns the calendar day span containing t
func (r *Resolver) DayOf(t time.Time) Interval {
	start := r.dayStart(t)
	return Interval{Start: start, End: r.nextDay(start)}
}

func (r *Resolver) dayStart(t time.Time) time.Time {
	t = t.In(r.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, r.loc)
}

func (r *Resolver) nextDay(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, r.loc)
}

// HolidaySet indexes holidays by calendar day
func HolidaySet(holidays []model.Holiday) map[string]bool {
	set := make(map[string]bool, len(holidays))
	for _, h := range holidays {
		set[model.DateKey(h.Date)] = true
	}
	return set
}
