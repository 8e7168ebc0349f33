package model

import (
	"time"

	"github.com/google/uuid"
)

// LessonSeries is the stored request that produced a set of recurring lessons.
// Lessons created from it carry its ID in Lesson.SeriesID.
type LessonSeries struct {
	ID              uuid.UUID `json:"id"`
	TeacherID       int64     `json:"teacher_id"`
	StudentID       int64     `json:"student_id"`
	Title           string    `json:"title"`
	Anchor          time.Time `json:"anchor"`           // первое занятие, задаёт время суток
	DurationMinutes int       `json:"duration_minutes"` // длительность в минутах
	IntervalWeeks   int       `json:"interval_weeks"`   // 1 = каждую неделю
	Count           int       `json:"count"`            // сколько кандидатов перебрать
	ByDay           []int     `json:"by_day"`           // 0 = Sunday, 6 = Saturday
	CreatedAt       time.Time `json:"created_at"`
}
