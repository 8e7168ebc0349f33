package model

import (
	"time"

	"github.com/google/uuid"
)

type LessonStatus string

const (
	LessonStatusScheduled LessonStatus = "scheduled" // Запланировано
	LessonStatusCompleted LessonStatus = "completed" // Проведено
	LessonStatusCancelled LessonStatus = "cancelled" // Отменено, время свободно
)

// Valid reports whether s is a known lesson status.
func (s LessonStatus) Valid() bool {
	switch s {
	case LessonStatusScheduled, LessonStatusCompleted, LessonStatusCancelled:
		return true
	}
	return false
}

// Occupies reports whether a lesson in this status blocks calendar time.
func (s LessonStatus) Occupies() bool {
	return s == LessonStatusScheduled || s == LessonStatusCompleted
}

type Lesson struct {
	ID        int64        `json:"id"`
	Title     string       `json:"title"`
	TeacherID int64        `json:"teacher_id"`
	StudentID int64        `json:"student_id"`
	StartTime time.Time    `json:"start_time"`
	EndTime   time.Time    `json:"end_time"`
	Status    LessonStatus `json:"status"`
	SeriesID  *uuid.UUID   `json:"series_id,omitempty"` // nil для разовых занятий
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Involves checks if the user is the teacher or the student of the lesson
func (l *Lesson) Involves(userID int64) bool {
	return l.TeacherID == userID || l.StudentID == userID
}

// DurationMinutes returns the lesson length in whole minutes
func (l *Lesson) DurationMinutes() int {
	return int(l.EndTime.Sub(l.StartTime) / time.Minute)
}
