package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Freeeeeet/lesson_scheduler/internal/ctxutil"
	"github.com/Freeeeeet/lesson_scheduler/internal/events"
	"github.com/Freeeeeet/lesson_scheduler/internal/lock"
	"github.com/Freeeeeet/lesson_scheduler/internal/metrics"
	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/repository"
	"github.com/Freeeeeet/lesson_scheduler/internal/scheduling"
)

// Ограничения поиска слотов
const (
	defaultSuggestDays     = 7
	maxSuggestDays         = 60
	defaultMaxSuggestions  = 5
	maxSuggestionsLimit    = 100
	defaultStepMinutes     = 15
	maxLessonDurationHours = 12
)

type LessonService struct {
	lessons      LessonStore
	availability *AvailabilityService
	locker       lock.Locker
	publisher    events.Publisher
	dbTimeout    time.Duration
	now          func() time.Time
	logger       *zap.Logger
}

func NewLessonService(
	lessons LessonStore,
	availability *AvailabilityService,
	locker lock.Locker,
	publisher events.Publisher,
	dbTimeout time.Duration,
	logger *zap.Logger,
) *LessonService {
	return &LessonService{
		lessons:      lessons,
		availability: availability,
		locker:       locker,
		publisher:    publisher,
		dbTimeout:    dbTimeout,
		now:          time.Now,
		logger:       logger,
	}
}

// CreateLessonInput параметры разового занятия
type CreateLessonInput struct {
	Title     string
	TeacherID int64
	StudentID int64
	Start     time.Time
	Duration  time.Duration
	Status    model.LessonStatus
}

func validateParticipants(teacherID, studentID int64) error {
	if teacherID <= 0 || studentID <= 0 {
		return validationf("teacher id and student id are required")
	}
	if teacherID == studentID {
		return validationf("teacher and student must be different users")
	}
	return nil
}

func validateSlot(start time.Time, d time.Duration) error {
	if start.IsZero() {
		return validationf("date is required")
	}
	if d <= 0 {
		return validationf("duration must be positive")
	}
	if d > maxLessonDurationHours*time.Hour {
		return validationf("duration must not exceed %d hours", maxLessonDurationHours)
	}
	return nil
}

// CreateLesson бронирует занятие. Под блокировкой обоих участников заново
// проверяет пересечения, поэтому из двух одновременных запросов на один слот
// проходит только один
func (s *LessonService) CreateLesson(ctx context.Context, in CreateLessonInput) (*model.Lesson, error) {
	if err := validateParticipants(in.TeacherID, in.StudentID); err != nil {
		return nil, err
	}
	if err := validateSlot(in.Start, in.Duration); err != nil {
		return nil, err
	}
	if in.Status == "" {
		in.Status = model.LessonStatusScheduled
	}
	if !in.Status.Valid() {
		return nil, validationf("unknown lesson status %q", in.Status)
	}

	ctx, cancel := ctxutil.WithDBTimeout(ctx, s.dbTimeout)
	defer cancel()

	unlock, err := s.locker.Lock(ctx, lock.ParticipantKeys(in.TeacherID, in.StudentID)...)
	if err != nil {
		return nil, fmt.Errorf("lock participants: %w", err)
	}
	defer unlock()

	lesson := &model.Lesson{
		Title:     in.Title,
		TeacherID: in.TeacherID,
		StudentID: in.StudentID,
		StartTime: in.Start,
		EndTime:   in.Start.Add(in.Duration),
		Status:    in.Status,
	}

	if lesson.Status.Occupies() {
		if err := s.checkConflicts(ctx, lesson, "create"); err != nil {
			return nil, err
		}
	}

	if err := s.lessons.Create(ctx, lesson); err != nil {
		if errors.Is(err, repository.ErrOverlap) {
			metrics.Conflicts.WithLabelValues("create").Inc()
			return nil, &ConflictError{}
		}
		return nil, fmt.Errorf("create lesson: %w", err)
	}

	metrics.LessonsCreated.WithLabelValues("single").Inc()
	s.logger.Info("Lesson created",
		zap.Int64("lesson_id", lesson.ID),
		zap.Int64("teacher_id", lesson.TeacherID),
		zap.Int64("student_id", lesson.StudentID),
		zap.Time("start", lesson.StartTime))

	s.publish(ctx, events.ForLesson(events.LessonCreated, lesson))
	return lesson, nil
}

// checkConflicts загружает занятия обоих участников вокруг интервала и
// возвращает ConflictError, если что-то пересекается. Сам урок (по ID) игнорируется
func (s *LessonService) checkConflicts(ctx context.Context, lesson *model.Lesson, op string) error {
	existing, err := s.lessons.ListForParticipants(ctx,
		[]int64{lesson.TeacherID, lesson.StudentID}, lesson.StartTime, lesson.EndTime)
	if err != nil {
		return fmt.Errorf("list lessons: %w", err)
	}

	candidate := scheduling.LessonInterval(lesson)
	conflicts := scheduling.FindConflicts(lesson.TeacherID, candidate, existing, lesson.ID)
	for _, c := range scheduling.FindConflicts(lesson.StudentID, candidate, existing, lesson.ID) {
		if !containsLesson(conflicts, c.ID) {
			conflicts = append(conflicts, c)
		}
	}
	if len(conflicts) == 0 {
		return nil
	}

	metrics.Conflicts.WithLabelValues(op).Inc()
	ids := make([]int64, len(conflicts))
	for i, c := range conflicts {
		ids[i] = c.ID
	}
	return &ConflictError{LessonIDs: ids}
}

func containsLesson(list []*model.Lesson, id int64) bool {
	for _, l := range list {
		if l.ID == id {
			return true
		}
	}
	return false
}

// lockLesson читает занятие, блокирует его участников и перечитывает уже под блокировкой
func (s *LessonService) lockLesson(ctx context.Context, lessonID int64) (*model.Lesson, func(), error) {
	lesson, err := s.lessons.GetByID(ctx, lessonID)
	if err != nil {
		return nil, nil, fmt.Errorf("get lesson: %w", err)
	}
	if lesson == nil {
		return nil, nil, notFoundf("lesson %d", lessonID)
	}

	unlock, err := s.locker.Lock(ctx, lock.ParticipantKeys(lesson.TeacherID, lesson.StudentID)...)
	if err != nil {
		return nil, nil, fmt.Errorf("lock participants: %w", err)
	}

	lesson, err = s.lessons.GetByID(ctx, lessonID)
	if err != nil {
		unlock()
		return nil, nil, fmt.Errorf("get lesson: %w", err)
	}
	if lesson == nil {
		unlock()
		return nil, nil, notFoundf("lesson %d", lessonID)
	}
	return lesson, unlock, nil
}

// LessonPatch частичное изменение занятия, nil поле не меняется
type LessonPatch struct {
	Start    *time.Time
	Duration *time.Duration
	Status   *model.LessonStatus
}

func (p LessonPatch) empty() bool {
	return p.Start == nil && p.Duration == nil && p.Status == nil
}

// Reschedule переносит занятие на новое время с повторной проверкой пересечений
func (s *LessonService) Reschedule(ctx context.Context, lessonID int64, start time.Time, d time.Duration) (*model.Lesson, error) {
	return s.Update(ctx, lessonID, LessonPatch{Start: &start, Duration: &d})
}

// SetStatus меняет статус занятия. Отмена освобождает время, возврат
// из отмены снова проверяет пересечения
func (s *LessonService) SetStatus(ctx context.Context, lessonID int64, status model.LessonStatus) (*model.Lesson, error) {
	return s.Update(ctx, lessonID, LessonPatch{Status: &status})
}

// Update применяет перенос и смену статуса одной записью под одной блокировкой.
// Любая ошибка оставляет занятие как было
func (s *LessonService) Update(ctx context.Context, lessonID int64, patch LessonPatch) (*model.Lesson, error) {
	if patch.empty() {
		return nil, validationf("nothing to change")
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, validationf("unknown lesson status %q", *patch.Status)
	}
	if patch.Start != nil && patch.Start.IsZero() {
		return nil, validationf("date is required")
	}
	if patch.Duration != nil && *patch.Duration <= 0 {
		return nil, validationf("duration must be positive")
	}

	ctx, cancel := ctxutil.WithDBTimeout(ctx, s.dbTimeout)
	defer cancel()

	lesson, unlock, err := s.lockLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	previous := lesson.Status
	start, d := lesson.StartTime, lesson.EndTime.Sub(lesson.StartTime)
	if patch.Start != nil {
		start = *patch.Start
	}
	if patch.Duration != nil {
		d = *patch.Duration
	}
	if err := validateSlot(start, d); err != nil {
		return nil, err
	}

	moved := !start.Equal(lesson.StartTime) || !start.Add(d).Equal(lesson.EndTime)
	status := previous
	if patch.Status != nil {
		status = *patch.Status
	}
	if !moved && status == previous {
		return lesson, nil
	}

	lesson.StartTime = start
	lesson.EndTime = start.Add(d)
	lesson.Status = status

	if status.Occupies() && (moved || !previous.Occupies()) {
		op := "status"
		if moved {
			op = "reschedule"
		}
		if err := s.checkConflicts(ctx, lesson, op); err != nil {
			return nil, err
		}
	}

	if err := s.update(ctx, lesson); err != nil {
		return nil, err
	}

	fields := []zap.Field{zap.Int64("lesson_id", lesson.ID)}
	if moved {
		fields = append(fields, zap.Time("start", start))
	}
	if status != previous {
		fields = append(fields, zap.String("from", string(previous)), zap.String("to", string(status)))
	}
	s.logger.Info("Lesson updated", fields...)

	eventType := events.LessonChanged
	if status == model.LessonStatusCancelled && previous != status {
		eventType = events.LessonCancelled
	}
	e := events.ForLesson(eventType, lesson)
	if status != previous {
		e.PreviousStatus = string(previous)
	}
	s.publish(ctx, e)
	return lesson, nil
}

func (s *LessonService) update(ctx context.Context, lesson *model.Lesson) error {
	err := s.lessons.Update(ctx, lesson)
	switch {
	case errors.Is(err, repository.ErrOverlap):
		return &ConflictError{}
	case errors.Is(err, repository.ErrNotFound):
		return notFoundf("lesson %d", lesson.ID)
	case err != nil:
		return fmt.Errorf("update lesson: %w", err)
	}
	return nil
}

// Delete удаляет занятие. Кто вправе удалять, решает внешний слой
func (s *LessonService) Delete(ctx context.Context, lessonID int64) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx, s.dbTimeout)
	defer cancel()

	lesson, unlock, err := s.lockLesson(ctx, lessonID)
	if err != nil {
		return err
	}
	defer unlock()

	deleted, err := s.lessons.Delete(ctx, lessonID)
	if err != nil {
		return fmt.Errorf("delete lesson: %w", err)
	}
	if !deleted {
		return notFoundf("lesson %d", lessonID)
	}

	s.logger.Info("Lesson deleted", zap.Int64("lesson_id", lessonID))

	lesson.Status = model.LessonStatusCancelled
	s.publish(ctx, events.ForLesson(events.LessonCancelled, lesson))
	return nil
}

// GetLesson возвращает занятие по ID
func (s *LessonService) GetLesson(ctx context.Context, lessonID int64) (*model.Lesson, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx, s.dbTimeout)
	defer cancel()

	lesson, err := s.lessons.GetByID(ctx, lessonID)
	if err != nil {
		return nil, fmt.Errorf("get lesson: %w", err)
	}
	if lesson == nil {
		return nil, notFoundf("lesson %d", lessonID)
	}
	return lesson, nil
}

// ListLessons возвращает занятия участника, пересекающие [from, to)
func (s *LessonService) ListLessons(ctx context.Context, participantID int64, from, to time.Time) ([]*model.Lesson, error) {
	if participantID <= 0 {
		return nil, validationf("participant id is required")
	}
	if !to.After(from) {
		return nil, validationf("range end must be after start")
	}

	ctx, cancel := ctxutil.WithDBTimeout(ctx, s.dbTimeout)
	defer cancel()

	lessons, err := s.lessons.ListForParticipants(ctx, []int64{participantID}, from, to)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	if lessons == nil {
		lessons = []*model.Lesson{}
	}
	return lessons, nil
}

// SuggestRequest параметры поиска свободных слотов
type SuggestRequest struct {
	TeacherID      int64
	StudentID      int64
	DurationMin    int
	MaxSuggestions int
	StepMinutes    int
	BufferMinutes  int
	Days           int
	Algorithm      string
	From           time.Time
}

func (r *SuggestRequest) applyDefaults(now time.Time) {
	if r.MaxSuggestions == 0 {
		r.MaxSuggestions = defaultMaxSuggestions
	}
	if r.StepMinutes == 0 {
		r.StepMinutes = defaultStepMinutes
	}
	if r.Days == 0 {
		r.Days = defaultSuggestDays
	}
	if r.From.IsZero() {
		r.From = now.Truncate(time.Minute)
	}
}

func (r *SuggestRequest) validate() error {
	if err := validateParticipants(r.TeacherID, r.StudentID); err != nil {
		return err
	}
	switch {
	case r.DurationMin <= 0 || r.DurationMin > maxLessonDurationHours*60:
		return validationf("durationMin must be between 1 and %d", maxLessonDurationHours*60)
	case r.MaxSuggestions < 1 || r.MaxSuggestions > maxSuggestionsLimit:
		return validationf("maxSuggestions must be between 1 and %d", maxSuggestionsLimit)
	case r.StepMinutes < 1:
		return validationf("stepMinutes must be positive")
	case r.BufferMinutes < 0:
		return validationf("bufferMinutes must not be negative")
	case r.Days < 1 || r.Days > maxSuggestDays:
		return validationf("days must be between 1 and %d", maxSuggestDays)
	}
	return nil
}

// SuggestSlots ищет общие свободные слоты учителя и ученика. Только чтение,
// без блокировок: результат - подсказка, а не бронь
func (s *LessonService) SuggestSlots(ctx context.Context, req SuggestRequest) ([]scheduling.Candidate, error) {
	req.applyDefaults(s.now())
	if err := req.validate(); err != nil {
		return nil, err
	}
	strategy, err := scheduling.StrategyByName(req.Algorithm)
	if err != nil {
		return nil, asValidation(err)
	}

	started := time.Now()
	from := req.From
	to := from.Add(time.Duration(req.Days) * 24 * time.Hour)

	var teacherFree, studentFree []scheduling.Interval
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		free, err := s.availability.FreeIntervals(gctx, req.TeacherID, from, to)
		if err != nil {
			return fmt.Errorf("teacher free intervals: %w", err)
		}
		teacherFree = free
		return nil
	})
	g.Go(func() error {
		free, err := s.availability.FreeIntervals(gctx, req.StudentID, from, to)
		if err != nil {
			return fmt.Errorf("student free intervals: %w", err)
		}
		studentFree = free
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	candidates, err := scheduling.Suggest(ctx, strategy, teacherFree, studentFree, scheduling.Constraints{
		From:           from,
		Duration:       time.Duration(req.DurationMin) * time.Minute,
		Step:           time.Duration(req.StepMinutes) * time.Minute,
		Buffer:         time.Duration(req.BufferMinutes) * time.Minute,
		MaxSuggestions: req.MaxSuggestions,
		Location:       s.availability.Resolver().Location(),
	})
	if err != nil {
		return nil, asValidation(err)
	}
	metrics.ObserveSuggest(strategy.Name(), time.Since(started))

	if candidates == nil {
		candidates = []scheduling.Candidate{}
	}

	s.logger.Debug("Slots suggested",
		zap.Int64("teacher_id", req.TeacherID),
		zap.Int64("student_id", req.StudentID),
		zap.String("algorithm", strategy.Name()),
		zap.Int("count", len(candidates)))

	return candidates, nil
}

// publish отправляет событие после коммита. Ошибка доставки не откатывает операцию
func (s *LessonService) publish(ctx context.Context, e events.Event) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("Failed to publish event", zap.String("type", string(e.Type)), zap.Error(err))
	}
}
