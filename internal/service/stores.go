package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/repository"
)

// Интерфейсы хранилищ, которые реализуют репозитории из internal/repository.
// Сервисы зависят от них, а не от pgx, чтобы тесты работали без базы

type LessonStore interface {
	Create(ctx context.Context, lesson *model.Lesson) error
	GetByID(ctx context.Context, id int64) (*model.Lesson, error)
	ListForParticipants(ctx context.Context, participantIDs []int64, from, to time.Time) ([]*model.Lesson, error)
	Update(ctx context.Context, lesson *model.Lesson) error
	Delete(ctx context.Context, id int64) (bool, error)
	CancelSeriesFrom(ctx context.Context, seriesID uuid.UUID, from time.Time) ([]*model.Lesson, error)
}

type SeriesStore interface {
	Create(ctx context.Context, series *model.LessonSeries) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.LessonSeries, error)
}

type AvailabilityStore interface {
	Replace(ctx context.Context, av *model.Availability) error
	Get(ctx context.Context, userID int64) (*model.Availability, error)
}

type HolidayStore interface {
	Upsert(ctx context.Context, h *model.Holiday) error
	Delete(ctx context.Context, date time.Time) (bool, error)
	List(ctx context.Context, from, to time.Time) ([]model.Holiday, error)
}

type CourseStore interface {
	CreateCourse(ctx context.Context, course *model.Course) error
	GetCourse(ctx context.Context, id int64) (*model.Course, error)
	GetEnrollment(ctx context.Context, id int64) (*model.Enrollment, error)
	ListEnrollments(ctx context.Context, courseID int64) ([]*model.Enrollment, error)
	WithCourseLock(ctx context.Context, courseID int64, fn func(tx repository.CourseTx) error) error
}

var (
	_ LessonStore       = (*repository.LessonRepository)(nil)
	_ SeriesStore       = (*repository.SeriesRepository)(nil)
	_ AvailabilityStore = (*repository.AvailabilityRepository)(nil)
	_ HolidayStore      = (*repository.HolidayRepository)(nil)
	_ CourseStore       = (*repository.CourseRepository)(nil)
)
