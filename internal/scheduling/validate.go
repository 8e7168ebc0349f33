package scheduling

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
)

// ErrInvalid marks malformed input rejected before it reaches the algebra.
var ErrInvalid = errors.New("invalid input")

// ValidateWeeklyRules checks day and time bounds and that rules of the same
// day do not overlap each other. Touching rules are allowed.
func ValidateWeeklyRules(rules []model.WeeklyRule) error {
	byDay := make(map[int][]model.WeeklyRule)
	for i, r := range rules {
		if r.DayOfWeek < 0 || r.DayOfWeek > 6 {
			return fmt.Errorf("%w: weekly rule %d: day_of_week %d out of range", ErrInvalid, i, r.DayOfWeek)
		}
		if !r.StartTime.Valid() || !r.EndTime.Valid() {
			return fmt.Errorf("%w: weekly rule %d: time out of range", ErrInvalid, i)
		}
		if r.EndTime <= r.StartTime {
			return fmt.Errorf("%w: weekly rule %d: end %s must be after start %s", ErrInvalid, i, r.EndTime, r.StartTime)
		}
		byDay[r.DayOfWeek] = append(byDay[r.DayOfWeek], r)
	}

	for day, list := range byDay {
		sort.Slice(list, func(i, j int) bool { return list[i].StartTime < list[j].StartTime })
		for i := 1; i < len(list); i++ {
			if list[i].StartTime < list[i-1].EndTime {
				return fmt.Errorf("%w: weekly rules overlap on day %d: %s-%s and %s-%s", ErrInvalid, day,
					list[i-1].StartTime, list[i-1].EndTime, list[i].StartTime, list[i].EndTime)
			}
		}
	}
	return nil
}

// ValidateExceptions checks that every slot is a proper interval and that each
// date appears only once.
func ValidateExceptions(exceptions []model.AvailabilityException) error {
	seen := make(map[string]bool, len(exceptions))
	for i, ex := range exceptions {
		if ex.Date.IsZero() {
			return fmt.Errorf("%w: exception %d: date is required", ErrInvalid, i)
		}
		key := model.DateKey(ex.Date)
		if seen[key] {
			return fmt.Errorf("%w: exception %d: duplicate date %s", ErrInvalid, i, key)
		}
		seen[key] = true

		for j, slot := range ex.Slots {
			if !FromRange(slot).Valid() {
				return fmt.Errorf("%w: exception %s slot %d: end must be after start", ErrInvalid, key, j)
			}
		}
	}
	return nil
}
