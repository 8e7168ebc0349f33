package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Freeeeeet/lesson_scheduler/internal/scheduling"
)

var (
	// ErrValidation - некорректный ввод, общее состояние не затронуто
	ErrValidation = errors.New("validation failed")
	// ErrConflict - интервал пересекается с уже принятым занятием
	ErrConflict = errors.New("time slot is no longer free")
	// ErrCapacityExceeded - явное одобрение превысило бы вместимость курса
	ErrCapacityExceeded = errors.New("course capacity exceeded")
	ErrNotFound         = errors.New("not found")
	// ErrAlreadyEnrolled - у пары курс + пользователь уже есть активная запись
	ErrAlreadyEnrolled = errors.New("already enrolled")
	// ErrInvalidTransition - переход статуса запрещён (rejected и dropped финальные)
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ConflictError сообщает, с какими занятиями пересёкся кандидат.
// errors.Is(err, ErrConflict) для неё истинно
type ConflictError struct {
	LessonIDs []int64
}

func (e *ConflictError) Error() string {
	if len(e.LessonIDs) == 0 {
		return ErrConflict.Error()
	}
	ids := make([]string, len(e.LessonIDs))
	for i, id := range e.LessonIDs {
		ids[i] = strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf("%s: overlaps lessons %s", ErrConflict, strings.Join(ids, ", "))
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// asValidation переводит ошибки проверки из scheduling в ErrValidation
func asValidation(err error) error {
	if errors.Is(err, scheduling.ErrInvalid) {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return err
}
