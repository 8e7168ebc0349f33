package handlers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/scheduling"
	"github.com/Freeeeeet/lesson_scheduler/internal/service"
)

// Операции сервисов, которые вызывает HTTP слой

type LessonService interface {
	CreateLesson(ctx context.Context, in service.CreateLessonInput) (*model.Lesson, error)
	GetLesson(ctx context.Context, lessonID int64) (*model.Lesson, error)
	Update(ctx context.Context, lessonID int64, patch service.LessonPatch) (*model.Lesson, error)
	Delete(ctx context.Context, lessonID int64) error
	ListLessons(ctx context.Context, participantID int64, from, to time.Time) ([]*model.Lesson, error)
	SuggestSlots(ctx context.Context, req service.SuggestRequest) ([]scheduling.Candidate, error)
}

type SeriesService interface {
	GenerateSeries(ctx context.Context, in service.CreateSeriesInput) (*service.SeriesResult, error)
	CancelSeries(ctx context.Context, seriesID uuid.UUID) (int, error)
}

type AvailabilityService interface {
	ReplaceAvailability(ctx context.Context, userID int64, rules []model.WeeklyRule, exceptions []model.AvailabilityException) error
	GetAvailability(ctx context.Context, userID int64) (*model.Availability, error)
	FreeIntervals(ctx context.Context, userID int64, from, to time.Time) ([]scheduling.Interval, error)
}

type HolidayService interface {
	AddHoliday(ctx context.Context, date time.Time, label string) (*model.Holiday, error)
	RemoveHoliday(ctx context.Context, date time.Time) error
	ListHolidays(ctx context.Context, from, to time.Time) ([]model.Holiday, error)
}

type EnrollmentService interface {
	CreateCourse(ctx context.Context, teacherID int64, title string, capacity *int) (*model.Course, error)
	GetCourse(ctx context.Context, courseID int64) (*model.Course, error)
	SetCapacity(ctx context.Context, courseID int64, capacity *int) (*model.Course, []*model.Enrollment, error)
	ListEnrollments(ctx context.Context, courseID int64) ([]*model.Enrollment, error)
	Enroll(ctx context.Context, courseID, userID int64) (*model.Enrollment, error)
	Drop(ctx context.Context, enrollmentID int64) (*model.Enrollment, []*model.Enrollment, error)
	SetStatus(ctx context.Context, enrollmentID int64, status model.EnrollmentStatus) (*model.Enrollment, []*model.Enrollment, error)
}

// Pinger проверяет доступность базы для /healthz
type Pinger interface {
	Ping(ctx context.Context) error
}

var (
	_ LessonService       = (*service.LessonService)(nil)
	_ SeriesService       = (*service.SeriesService)(nil)
	_ AvailabilityService = (*service.AvailabilityService)(nil)
	_ HolidayService      = (*service.HolidayService)(nil)
	_ EnrollmentService   = (*service.EnrollmentService)(nil)
)

// Handlers содержит все зависимости HTTP обработчиков
type Handlers struct {
	lessons      LessonService
	series       SeriesService
	availability AvailabilityService
	holidays     HolidayService
	enrollments  EnrollmentService
	db           Pinger
	logger       *zap.Logger
}

// NewHandlers создаёт обработчики HTTP API
func NewHandlers(
	lessons LessonService,
	series SeriesService,
	availability AvailabilityService,
	holidays HolidayService,
	enrollments EnrollmentService,
	db Pinger,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		lessons:      lessons,
		series:       series,
		availability: availability,
		holidays:     holidays,
		enrollments:  enrollments,
		db:           db,
		logger:       logger,
	}
}
