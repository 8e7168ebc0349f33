package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Freeeeeet/lesson_scheduler/internal/ctxutil"
	"github.com/Freeeeeet/lesson_scheduler/internal/events"
	"github.com/Freeeeeet/lesson_scheduler/internal/lock"
	"github.com/Freeeeeet/lesson_scheduler/internal/metrics"
	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/repository"
	"github.com/Freeeeeet/lesson_scheduler/internal/scheduling"
)

type SeriesService struct {
	series       SeriesStore
	lessons      LessonStore
	availability *AvailabilityService
	locker       lock.Locker
	publisher    events.Publisher
	dbTimeout    time.Duration
	now          func() time.Time
	logger       *zap.Logger
}

func NewSeriesService(
	series SeriesStore,
	lessons LessonStore,
	availability *AvailabilityService,
	locker lock.Locker,
	publisher events.Publisher,
	dbTimeout time.Duration,
	logger *zap.Logger,
) *SeriesService {
	return &SeriesService{
		series:       series,
		lessons:      lessons,
		availability: availability,
		locker:       locker,
		publisher:    publisher,
		dbTimeout:    dbTimeout,
		now:          time.Now,
		logger:       logger,
	}
}

// CreateSeriesInput параметры повторяющихся занятий
type CreateSeriesInput struct {
	Title         string
	TeacherID     int64
	StudentID     int64
	Start         time.Time
	Duration      time.Duration
	IntervalWeeks int
	Count         int
	ByDay         []int
}

// SkippedOccurrence кандидат серии, который не был забронирован
type SkippedOccurrence struct {
	Start  time.Time             `json:"start"`
	End    time.Time             `json:"end"`
	Reason scheduling.SkipReason `json:"reason"`
}

// SeriesResult частичный успех - нормальный результат: смотреть нужно оба списка
type SeriesResult struct {
	Series  *model.LessonSeries
	Created []*model.Lesson
	Skipped []SkippedOccurrence
}

// GenerateSeries разворачивает шаблон в Count кандидатов и бронирует подходящие.
// Каждый кандидат проверяется по порядку: выходной, пересечение с уже принятыми
// занятиями, пересечение с занятиями этой же серии, свободное время учителя и ученика.
// Каждое занятие вставляется отдельно; пропущенные не добираются новыми неделями
func (s *SeriesService) GenerateSeries(ctx context.Context, in CreateSeriesInput) (*SeriesResult, error) {
	if err := validateParticipants(in.TeacherID, in.StudentID); err != nil {
		return nil, err
	}
	if err := validateSlot(in.Start, in.Duration); err != nil {
		return nil, err
	}

	resolver := s.availability.Resolver()
	spec := scheduling.SeriesSpec{
		Anchor:        in.Start,
		Duration:      in.Duration,
		IntervalWeeks: in.IntervalWeeks,
		Count:         in.Count,
		ByDay:         in.ByDay,
	}
	candidates, err := scheduling.ExpandSeries(spec, resolver.Location())
	if err != nil {
		return nil, asValidation(err)
	}

	ctx, cancel := ctxutil.WithDBTimeout(ctx, s.dbTimeout)
	defer cancel()

	unlock, err := s.locker.Lock(ctx, lock.ParticipantKeys(in.TeacherID, in.StudentID)...)
	if err != nil {
		return nil, fmt.Errorf("lock participants: %w", err)
	}
	defer unlock()

	validator, err := s.newValidator(ctx, in.TeacherID, in.StudentID, scheduling.Span(candidates))
	if err != nil {
		return nil, err
	}

	series := &model.LessonSeries{
		TeacherID:       in.TeacherID,
		StudentID:       in.StudentID,
		Title:           in.Title,
		Anchor:          in.Start,
		DurationMinutes: int(in.Duration / time.Minute),
		IntervalWeeks:   in.IntervalWeeks,
		Count:           in.Count,
		ByDay:           in.ByDay,
	}
	if err := s.series.Create(ctx, series); err != nil {
		return nil, fmt.Errorf("create series: %w", err)
	}

	result := &SeriesResult{
		Series:  series,
		Created: []*model.Lesson{},
		Skipped: []SkippedOccurrence{},
	}

	for _, c := range candidates {
		if reason := validator.Check(c); reason != "" {
			result.skip(c, reason)
			continue
		}

		lesson := &model.Lesson{
			Title:     in.Title,
			TeacherID: in.TeacherID,
			StudentID: in.StudentID,
			StartTime: c.Start,
			EndTime:   c.End,
			Status:    model.LessonStatusScheduled,
			SeriesID:  &series.ID,
		}
		if err := s.lessons.Create(ctx, lesson); err != nil {
			if errors.Is(err, repository.ErrOverlap) {
				result.skip(c, scheduling.SkipConflict)
				continue
			}
			s.logger.Error("Series generation interrupted",
				zap.String("series_id", series.ID.String()),
				zap.Int("created", len(result.Created)),
				zap.Error(err))
			return nil, fmt.Errorf("create series lesson: %w", err)
		}

		validator.Accept(c)
		result.Created = append(result.Created, lesson)
		metrics.LessonsCreated.WithLabelValues("series").Inc()
		s.publish(ctx, events.ForLesson(events.LessonCreated, lesson))
	}

	s.logger.Info("Series generated",
		zap.String("series_id", series.ID.String()),
		zap.Int64("teacher_id", in.TeacherID),
		zap.Int64("student_id", in.StudentID),
		zap.Int("created", len(result.Created)),
		zap.Int("skipped", len(result.Skipped)))

	return result, nil
}

func (r *SeriesResult) skip(c scheduling.Interval, reason scheduling.SkipReason) {
	r.Skipped = append(r.Skipped, SkippedOccurrence{Start: c.Start, End: c.End, Reason: reason})
	metrics.SeriesSkipped.WithLabelValues(string(reason)).Inc()
}

// newValidator собирает снимок для проверки кандидатов: занятия обоих участников,
// выходные и свободное время каждого на всём протяжении серии
func (s *SeriesService) newValidator(ctx context.Context, teacherID, studentID int64, span scheduling.Interval) (*scheduling.SeriesValidator, error) {
	existing, err := s.lessons.ListForParticipants(ctx, []int64{teacherID, studentID}, span.Start, span.End)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}

	holidays, err := s.availability.HolidaySet(ctx, span.Start, span.End)
	if err != nil {
		return nil, err
	}

	teacherFree, err := s.availability.freeIntervals(ctx, teacherID, span.Start, span.End)
	if err != nil {
		return nil, fmt.Errorf("teacher free intervals: %w", err)
	}
	studentFree, err := s.availability.freeIntervals(ctx, studentID, span.Start, span.End)
	if err != nil {
		return nil, fmt.Errorf("student free intervals: %w", err)
	}

	return &scheduling.SeriesValidator{
		TeacherID:   teacherID,
		StudentID:   studentID,
		Resolver:    s.availability.Resolver(),
		Holidays:    holidays,
		Lessons:     existing,
		TeacherFree: teacherFree,
		StudentFree: studentFree,
	}, nil
}

// CancelSeries отменяет все ещё не начавшиеся запланированные занятия серии
func (s *SeriesService) CancelSeries(ctx context.Context, seriesID uuid.UUID) (int, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx, s.dbTimeout)
	defer cancel()

	series, err := s.series.GetByID(ctx, seriesID)
	if err != nil {
		return 0, fmt.Errorf("get series: %w", err)
	}
	if series == nil {
		return 0, notFoundf("series %s", seriesID)
	}

	unlock, err := s.locker.Lock(ctx, lock.ParticipantKeys(series.TeacherID, series.StudentID)...)
	if err != nil {
		return 0, fmt.Errorf("lock participants: %w", err)
	}
	defer unlock()

	cancelled, err := s.lessons.CancelSeriesFrom(ctx, seriesID, s.now())
	if err != nil {
		return 0, fmt.Errorf("cancel series: %w", err)
	}

	for _, l := range cancelled {
		s.publish(ctx, events.ForLesson(events.LessonCancelled, l))
	}

	s.logger.Info("Series cancelled",
		zap.String("series_id", seriesID.String()),
		zap.Int("cancelled", len(cancelled)))

	return len(cancelled), nil
}

func (s *SeriesService) publish(ctx context.Context, e events.Event) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("Failed to publish event", zap.String("type", string(e.Type)), zap.Error(err))
	}
}
