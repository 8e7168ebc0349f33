package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/lesson_scheduler/internal/ctxutil"
	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/scheduling"
)

// maxRange ограничивает диапазон расчёта свободного времени
const maxRange = 366 * 24 * time.Hour

type AvailabilityService struct {
	availability AvailabilityStore
	holidays     HolidayStore
	lessons      LessonStore
	resolver     *scheduling.Resolver
	dbTimeout    time.Duration
	logger       *zap.Logger
}

func NewAvailabilityService(
	availability AvailabilityStore,
	holidays HolidayStore,
	lessons LessonStore,
	resolver *scheduling.Resolver,
	dbTimeout time.Duration,
	logger *zap.Logger,
) *AvailabilityService {
	return &AvailabilityService{
		availability: availability,
		holidays:     holidays,
		lessons:      lessons,
		resolver:     resolver,
		dbTimeout:    dbTimeout,
		logger:       logger,
	}
}

// ReplaceAvailability целиком заменяет правила и исключения пользователя.
// Слияния нет: что пришло, то и сохраняется
func (s *AvailabilityService) ReplaceAvailability(ctx context.Context, userID int64, rules []model.WeeklyRule, exceptions []model.AvailabilityException) error {
	if userID <= 0 {
		return validationf("user id is required")
	}
	if err := scheduling.ValidateWeeklyRules(rules); err != nil {
		return asValidation(err)
	}
	for i := range exceptions {
		exceptions[i].Date = model.DateOf(exceptions[i].Date)
	}
	if err := scheduling.ValidateExceptions(exceptions); err != nil {
		return asValidation(err)
	}

	ctx, cancel := ctxutil.WithDBTimeout(ctx, s.dbTimeout)
	defer cancel()

	av := &model.Availability{UserID: userID, WeeklyRules: rules, Exceptions: exceptions}
	if err := s.availability.Replace(ctx, av); err != nil {
		return fmt.Errorf("replace availability: %w", err)
	}

	s.logger.Info("Availability updated",
		zap.Int64("user_id", userID),
		zap.Int("weekly_rules", len(rules)),
		zap.Int("exceptions", len(exceptions)))

	return nil
}

// GetAvailability возвращает сохранённые правила и исключения пользователя
func (s *AvailabilityService) GetAvailability(ctx context.Context, userID int64) (*model.Availability, error) {
	if userID <= 0 {
		return nil, validationf("user id is required")
	}

	ctx, cancel := ctxutil.WithDBTimeout(ctx, s.dbTimeout)
	defer cancel()

	av, err := s.availability.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get availability: %w", err)
	}
	return av, nil
}

// FreeIntervals считает свободное время пользователя в [from, to) по свежему снимку из базы
func (s *AvailabilityService) FreeIntervals(ctx context.Context, userID int64, from, to time.Time) ([]scheduling.Interval, error) {
	if userID <= 0 {
		return nil, validationf("user id is required")
	}
	if !to.After(from) {
		return nil, validationf("range end must be after start")
	}
	if to.Sub(from) > maxRange {
		return nil, validationf("range must not exceed %d days", int(maxRange/(24*time.Hour)))
	}

	ctx, cancel := ctxutil.WithDBTimeout(ctx, s.dbTimeout)
	defer cancel()

	return s.freeIntervals(ctx, userID, from, to)
}

// freeIntervals без ограничения длины диапазона, для серий
func (s *AvailabilityService) freeIntervals(ctx context.Context, userID int64, from, to time.Time) ([]scheduling.Interval, error) {
	snap, err := s.snapshot(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}

	free, err := s.resolver.FreeIntervals(userID, snap, from, to)
	if err != nil {
		return nil, asValidation(err)
	}
	return free, nil
}

func (s *AvailabilityService) snapshot(ctx context.Context, userID int64, from, to time.Time) (scheduling.Snapshot, error) {
	av, err := s.availability.Get(ctx, userID)
	if err != nil {
		return scheduling.Snapshot{}, fmt.Errorf("get availability: %w", err)
	}

	holidays, err := s.holidaysBetween(ctx, from, to)
	if err != nil {
		return scheduling.Snapshot{}, err
	}

	lessons, err := s.lessons.ListForParticipants(ctx, []int64{userID}, from, to)
	if err != nil {
		return scheduling.Snapshot{}, fmt.Errorf("list lessons: %w", err)
	}

	return scheduling.Snapshot{
		Rules:      av.WeeklyRules,
		Exceptions: av.Exceptions,
		Holidays:   holidays,
		Lessons:    lessons,
	}, nil
}

// holidaysBetween загружает выходные всех календарных дней, которые задевает [from, to)
func (s *AvailabilityService) holidaysBetween(ctx context.Context, from, to time.Time) ([]model.Holiday, error) {
	loc := s.resolver.Location()
	holidays, err := s.holidays.List(ctx, model.DateOf(from.In(loc)), model.DateOf(to.In(loc)))
	if err != nil {
		return nil, fmt.Errorf("list holidays: %w", err)
	}
	return holidays, nil
}

// HolidaySet возвращает выходные диапазона в виде множества дат
func (s *AvailabilityService) HolidaySet(ctx context.Context, from, to time.Time) (map[string]bool, error) {
	holidays, err := s.holidaysBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return scheduling.HolidaySet(holidays), nil
}

func (s *AvailabilityService) Resolver() *scheduling.Resolver {
	return s.resolver
}
