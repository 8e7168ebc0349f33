package scheduling

import "github.com/Freeeeeet/lesson_scheduler/internal/model"

// HasConflict reports whether candidate overlaps any lesson that occupies
// participantID's calendar. Cancelled lessons and lessons of other people are ignored.
func HasConflict(participantID int64, candidate Interval, lessons []*model.Lesson) bool {
	return len(FindConflicts(participantID, candidate, lessons, 0)) > 0
}

// FindConflicts returns the lessons of participantID overlapping candidate.
// A lesson with ID ignoreID is skipped, which lets a lesson be moved over its own slot.
func FindConflicts(participantID int64, candidate Interval, lessons []*model.Lesson, ignoreID int64) []*model.Lesson {
	var out []*model.Lesson
	for _, l := range lessons {
		if l == nil || (ignoreID != 0 && l.ID == ignoreID) {
			continue
		}
		if !l.Status.Occupies() || !l.Involves(participantID) {
			continue
		}
		if Overlaps(candidate, LessonInterval(l)) {
			out = append(out, l)
		}
	}
	return out
}

// BusyIntervals returns the merged occupied spans of participantID
func BusyIntervals(participantID int64, lessons []*model.Lesson) []Interval {
	var busy []Interval
	for _, l := range lessons {
		if l != nil && l.Status.Occupies() && l.Involves(participantID) {
			busy = append(busy, LessonInterval(l))
		}
	}
	return Merge(busy)
}
