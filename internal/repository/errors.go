package repository

import "github.com/Freeeeeet/lesson_scheduler/internal/repository/base"

// Ошибки хранилища, на которые опирается сервисный слой
var (
	ErrOverlap   = base.ErrOverlap
	ErrDuplicate = base.ErrDuplicate
	ErrNotFound  = base.ErrNotFound
	// ErrCourseNotFound отличает пропавший курс от пропавшей записи внутри блокировки
	ErrCourseNotFound = base.ErrCourseNotFound
)
