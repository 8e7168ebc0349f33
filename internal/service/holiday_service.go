package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/lesson_scheduler/internal/ctxutil"
	"github.com/Freeeeeet/lesson_scheduler/internal/model"
)

// HolidayService управляет общими выходными. Изменения сразу влияют на доступность
// всех участников, потому что свободное время никогда не кешируется
type HolidayService struct {
	holidays  HolidayStore
	dbTimeout time.Duration
	logger    *zap.Logger
}

func NewHolidayService(holidays HolidayStore, dbTimeout time.Duration, logger *zap.Logger) *HolidayService {
	return &HolidayService{holidays: holidays, dbTimeout: dbTimeout, logger: logger}
}

// AddHoliday добавляет выходной или меняет его подпись
func (s *HolidayService) AddHoliday(ctx context.Context, date time.Time, label string) (*model.Holiday, error) {
	if date.IsZero() {
		return nil, validationf("date is required")
	}

	ctx, cancel := ctxutil.WithDBTimeout(ctx, s.dbTimeout)
	defer cancel()

	h := &model.Holiday{Date: model.DateOf(date), Label: label}
	if err := s.holidays.Upsert(ctx, h); err != nil {
		return nil, fmt.Errorf("add holiday: %w", err)
	}

	s.logger.Info("Holiday added", zap.String("date", model.DateKey(h.Date)), zap.String("label", label))
	return h, nil
}

// RemoveHoliday удаляет выходной
func (s *HolidayService) RemoveHoliday(ctx context.Context, date time.Time) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx, s.dbTimeout)
	defer cancel()

	deleted, err := s.holidays.Delete(ctx, model.DateOf(date))
	if err != nil {
		return fmt.Errorf("remove holiday: %w", err)
	}
	if !deleted {
		return notFoundf("holiday %s", model.DateKey(date))
	}

	s.logger.Info("Holiday removed", zap.String("date", model.DateKey(date)))
	return nil
}

// ListHolidays возвращает выходные в диапазоне дат включительно
func (s *HolidayService) ListHolidays(ctx context.Context, from, to time.Time) ([]model.Holiday, error) {
	if to.Before(from) {
		return nil, validationf("range end must not be before start")
	}

	ctx, cancel := ctxutil.WithDBTimeout(ctx, s.dbTimeout)
	defer cancel()

	holidays, err := s.holidays.List(ctx, model.DateOf(from), model.DateOf(to))
	if err != nil {
		return nil, fmt.Errorf("list holidays: %w", err)
	}
	return holidays, nil
}
