// Package events defines the domain events the scheduler emits for an external
// notifier and the publishers that deliver them.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
)

// Type identifies a domain event.
type Type string

const (
	LessonCreated           Type = "lesson.created"
	LessonChanged           Type = "lesson.changed"
	LessonCancelled         Type = "lesson.cancelled"
	EnrollmentStatusChanged Type = "enrollment.status_changed"
)

// Event carries enough identifiers for a notifier to render a message.
type Event struct {
	Type       Type      `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`

	LessonID  int64      `json:"lesson_id,omitempty"`
	SeriesID  string     `json:"series_id,omitempty"`
	TeacherID int64      `json:"teacher_id,omitempty"`
	StudentID int64      `json:"student_id,omitempty"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	EnrollmentID int64 `json:"enrollment_id,omitempty"`
	CourseID     int64 `json:"course_id,omitempty"`
	UserID       int64 `json:"user_id,omitempty"`

	Status         string `json:"status"`
	PreviousStatus string `json:"previous_status,omitempty"`
}

// ForLesson builds a lesson event from the lesson's current state
func ForLesson(t Type, l *model.Lesson) Event {
	start, end := l.StartTime, l.EndTime
	e := Event{
		Type:       t,
		OccurredAt: time.Now().UTC(),
		LessonID:   l.ID,
		TeacherID:  l.TeacherID,
		StudentID:  l.StudentID,
		StartTime:  &start,
		EndTime:    &end,
		Status:     string(l.Status),
	}
	if l.SeriesID != nil {
		e.SeriesID = l.SeriesID.String()
	}
	return e
}

// ForEnrollment builds an enrollment.status_changed event
func ForEnrollment(en *model.Enrollment, previous model.EnrollmentStatus) Event {
	return Event{
		Type:           EnrollmentStatusChanged,
		OccurredAt:     time.Now().UTC(),
		EnrollmentID:   en.ID,
		CourseID:       en.CourseID,
		UserID:         en.UserID,
		Status:         string(en.Status),
		PreviousStatus: string(previous),
	}
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Multi fans an event out to every publisher and joins their errors
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
