package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/lesson_scheduler/internal/ctxutil"
	"github.com/Freeeeeet/lesson_scheduler/internal/events"
	"github.com/Freeeeeet/lesson_scheduler/internal/metrics"
	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/repository"
)

// EnrollmentService управляет записью на курсы, вместимостью и очередью ожидания.
// Все изменения одного курса выполняются под блокировкой строки курса
type EnrollmentService struct {
	courses   CourseStore
	publisher events.Publisher
	dbTimeout time.Duration
	logger    *zap.Logger
}

func NewEnrollmentService(courses CourseStore, publisher events.Publisher, dbTimeout time.Duration, logger *zap.Logger) *EnrollmentService {
	return &EnrollmentService{
		courses:   courses,
		publisher: publisher,
		dbTimeout: dbTimeout,
		logger:    logger,
	}
}

// statusChange одно изменение статуса, событие по нему уходит после коммита
type statusChange struct {
	enrollment *model.Enrollment
	previous   model.EnrollmentStatus
}

// CreateCourse создаёт курс. nil capacity - без ограничений
func (s *EnrollmentService) CreateCourse(ctx context.Context, teacherID int64, title string, capacity *int) (*model.Course, error) {
	if teacherID <= 0 {
		return nil, validationf("teacher id is required")
	}
	if title == "" {
		return nil, validationf("title is required")
	}
	if capacity != nil && *capacity < 0 {
		return nil, validationf("capacity must not be negative")
	}

	ctx, cancel := ctxutil.WithDBTimeout(ctx, s.dbTimeout)
	defer cancel()

	course := &model.Course{TeacherID: teacherID, Title: title, Capacity: capacity}
	if err := s.courses.CreateCourse(ctx, course); err != nil {
		return nil, fmt.Errorf("create course: %w", err)
	}

	s.logger.Info("Course created", zap.Int64("course_id", course.ID), zap.Int64("teacher_id", teacherID))
	return course, nil
}

// GetCourse возвращает курс по ID
func (s *EnrollmentService) GetCourse(ctx context.Context, courseID int64) (*model.Course, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx, s.dbTimeout)
	defer cancel()

	course, err := s.courses.GetCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("get course: %w", err)
	}
	if course == nil {
		return nil, notFoundf("course %d", courseID)
	}
	return course, nil
}

// ListEnrollments возвращает все записи курса в порядке очереди
func (s *EnrollmentService) ListEnrollments(ctx context.Context, courseID int64) ([]*model.Enrollment, error) {
	if _, err := s.GetCourse(ctx, courseID); err != nil {
		return nil, err
	}

	ctx, cancel := ctxutil.WithDBTimeout(ctx, s.dbTimeout)
	defer cancel()

	list, err := s.courses.ListEnrollments(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	if list == nil {
		list = []*model.Enrollment{}
	}
	return list, nil
}

// Enroll записывает пользователя: approved, если есть место, иначе waitlisted.
// Переполнение здесь не ошибка
func (s *EnrollmentService) Enroll(ctx context.Context, courseID, userID int64) (*model.Enrollment, error) {
	if courseID <= 0 || userID <= 0 {
		return nil, validationf("course id and user id are required")
	}

	ctx, cancel := ctxutil.WithDBTimeout(ctx, s.dbTimeout)
	defer cancel()

	var enrollment *model.Enrollment
	err := s.withCourse(ctx, courseID, func(tx repository.CourseTx) error {
		active, err := tx.ActiveEnrollment(ctx, userID)
		if err != nil {
			return err
		}
		if active != nil {
			return fmt.Errorf("%w: enrollment %d is %s", ErrAlreadyEnrolled, active.ID, active.Status)
		}

		approved, err := tx.CountApproved(ctx)
		if err != nil {
			return err
		}

		status := model.EnrollmentStatusWaitlisted
		if tx.Course().HasSeatFor(approved) {
			status = model.EnrollmentStatusApproved
		}

		enrollment = &model.Enrollment{UserID: userID, Status: status}
		if err := tx.InsertEnrollment(ctx, enrollment); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrAlreadyEnrolled
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("User enrolled",
		zap.Int64("course_id", courseID),
		zap.Int64("user_id", userID),
		zap.String("status", string(enrollment.Status)))

	s.emit(ctx, []statusChange{{enrollment: enrollment}})
	return enrollment, nil
}

// Drop отчисляет пользователя. Если он занимал место, его получает самый ранний
// из ожидающих в той же транзакции. Возвращает отчисленную запись и повышенные
func (s *EnrollmentService) Drop(ctx context.Context, enrollmentID int64) (*model.Enrollment, []*model.Enrollment, error) {
	return s.transition(ctx, enrollmentID, model.EnrollmentStatusDropped)
}

// SetStatus административно меняет статус. Перевод в approved проверяет вместимость,
// уход из approved запускает продвижение очереди
func (s *EnrollmentService) SetStatus(ctx context.Context, enrollmentID int64, status model.EnrollmentStatus) (*model.Enrollment, []*model.Enrollment, error) {
	switch status {
	case model.EnrollmentStatusApproved, model.EnrollmentStatusWaitlisted,
		model.EnrollmentStatusRejected, model.EnrollmentStatusDropped:
	default:
		return nil, nil, validationf("unknown enrollment status %q", status)
	}
	return s.transition(ctx, enrollmentID, status)
}

func (s *EnrollmentService) transition(ctx context.Context, enrollmentID int64, status model.EnrollmentStatus) (*model.Enrollment, []*model.Enrollment, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx, s.dbTimeout)
	defer cancel()

	current, err := s.courses.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, nil, fmt.Errorf("get enrollment: %w", err)
	}
	if current == nil {
		return nil, nil, notFoundf("enrollment %d", enrollmentID)
	}

	var (
		enrollment *model.Enrollment
		changes    []statusChange
	)
	err = s.withCourse(ctx, current.CourseID, func(tx repository.CourseTx) error {
		changes = nil

		e, err := tx.Enrollment(ctx, enrollmentID)
		if err != nil {
			return err
		}
		if e == nil {
			return notFoundf("enrollment %d", enrollmentID)
		}
		enrollment = e

		if e.Status == status {
			return nil
		}
		if e.IsTerminal() {
			return fmt.Errorf("%w: enrollment %d is %s", ErrInvalidTransition, e.ID, e.Status)
		}
		// на курсе без ограничения ждать нечего, такая запись не продвинулась бы никогда
		if status == model.EnrollmentStatusWaitlisted && tx.Course().Capacity == nil {
			return fmt.Errorf("%w: course %d has no capacity limit", ErrInvalidTransition, e.CourseID)
		}

		if status == model.EnrollmentStatusApproved {
			approved, err := tx.CountApproved(ctx)
			if err != nil {
				return err
			}
			if !tx.Course().HasSeatFor(approved) {
				return fmt.Errorf("%w: course %d has %d approved of %d",
					ErrCapacityExceeded, e.CourseID, approved, *tx.Course().Capacity)
			}
		}

		previous := e.Status
		if err := tx.UpdateEnrollmentStatus(ctx, e, status); err != nil {
			return err
		}
		changes = append(changes, statusChange{enrollment: e, previous: previous})

		if previous == model.EnrollmentStatusApproved {
			promoted, err := s.promote(ctx, tx, e.ID)
			if err != nil {
				return err
			}
			changes = append(changes, promoted...)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	var promoted []*model.Enrollment
	for _, c := range changes[min(1, len(changes)):] {
		promoted = append(promoted, c.enrollment)
	}

	if len(changes) > 0 {
		s.logger.Info("Enrollment status changed",
			zap.Int64("enrollment_id", enrollment.ID),
			zap.Int64("course_id", enrollment.CourseID),
			zap.String("from", string(changes[0].previous)),
			zap.String("to", string(enrollment.Status)),
			zap.Int("promoted", len(promoted)))
	}

	s.emit(ctx, changes)
	return enrollment, promoted, nil
}

// SetCapacity меняет вместимость курса. Нельзя опустить ниже числа уже одобренных;
// освободившиеся места сразу занимает очередь
func (s *EnrollmentService) SetCapacity(ctx context.Context, courseID int64, capacity *int) (*model.Course, []*model.Enrollment, error) {
	if capacity != nil && *capacity < 0 {
		return nil, nil, validationf("capacity must not be negative")
	}

	ctx, cancel := ctxutil.WithDBTimeout(ctx, s.dbTimeout)
	defer cancel()

	var (
		course  *model.Course
		changes []statusChange
	)
	err := s.withCourse(ctx, courseID, func(tx repository.CourseTx) error {
		changes = nil

		approved, err := tx.CountApproved(ctx)
		if err != nil {
			return err
		}
		if capacity != nil && *capacity < approved {
			return fmt.Errorf("%w: course %d already has %d approved", ErrCapacityExceeded, courseID, approved)
		}

		if err := tx.UpdateCapacity(ctx, capacity); err != nil {
			return err
		}
		course = tx.Course()

		promoted, err := s.promote(ctx, tx, 0)
		if err != nil {
			return err
		}
		changes = promoted
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	promoted := make([]*model.Enrollment, 0, len(changes))
	for _, c := range changes {
		promoted = append(promoted, c.enrollment)
	}

	s.logger.Info("Course capacity changed",
		zap.Int64("course_id", courseID),
		zap.Any("capacity", capacity),
		zap.Int("promoted", len(promoted)))

	s.emit(ctx, changes)
	return course, promoted, nil
}

// promote переводит ожидающих в approved по порядку created_at, пока есть места.
// excludeID - только что пониженная запись, её обратно не поднимаем.
// У курса без ограничения одобряется вся очередь
func (s *EnrollmentService) promote(ctx context.Context, tx repository.CourseTx, excludeID int64) ([]statusChange, error) {
	course := tx.Course()
	free := math.MaxInt32
	if course.Capacity != nil {
		approved, err := tx.CountApproved(ctx)
		if err != nil {
			return nil, err
		}
		free = course.FreeSeats(approved)
		if free == 0 {
			return nil, nil
		}
	}

	waitlist, err := tx.Waitlist(ctx, free+1)
	if err != nil {
		return nil, err
	}

	var changes []statusChange
	for _, e := range waitlist {
		if len(changes) == free {
			break
		}
		if e.ID == excludeID {
			continue
		}
		if err := tx.UpdateEnrollmentStatus(ctx, e, model.EnrollmentStatusApproved); err != nil {
			return nil, err
		}
		changes = append(changes, statusChange{enrollment: e, previous: model.EnrollmentStatusWaitlisted})
	}
	return changes, nil
}

// withCourse выполняет fn под блокировкой курса и переводит ошибки хранилища.
// "course N not found" только когда нет самого курса
func (s *EnrollmentService) withCourse(ctx context.Context, courseID int64, fn func(tx repository.CourseTx) error) error {
	err := s.courses.WithCourseLock(ctx, courseID, fn)
	switch {
	case errors.Is(err, repository.ErrCourseNotFound):
		return notFoundf("course %d", courseID)
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}

func (s *EnrollmentService) emit(ctx context.Context, changes []statusChange) {
	for _, c := range changes {
		metrics.EnrollmentTransitions.WithLabelValues(string(c.enrollment.Status)).Inc()
		e := events.ForEnrollment(c.enrollment, c.previous)
		if err := s.publisher.Publish(ctx, e); err != nil {
			s.logger.Warn("Failed to publish event", zap.String("type", string(e.Type)), zap.Error(err))
		}
	}
}
