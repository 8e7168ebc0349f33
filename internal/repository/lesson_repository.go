package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/repository/base"
)

const lessonColumns = `id, title, teacher_id, student_id, start_time, end_time, status, series_id, created_at, updated_at`

// LessonRepository управляет занятиями в базе данных
type LessonRepository struct {
	*base.Repository
	logger *zap.Logger
}

// NewLessonRepository создаёт новый репозиторий занятий
func NewLessonRepository(pool *pgxpool.Pool, logger *zap.Logger) *LessonRepository {
	return &LessonRepository{
		Repository: base.NewRepository(pool),
		logger:     logger,
	}
}

func scanLesson(row pgx.Row) (*model.Lesson, error) {
	lesson := &model.Lesson{}
	err := row.Scan(
		&lesson.ID,
		&lesson.Title,
		&lesson.TeacherID,
		&lesson.StudentID,
		&lesson.StartTime,
		&lesson.EndTime,
		&lesson.Status,
		&lesson.SeriesID,
		&lesson.CreatedAt,
		&lesson.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return lesson, nil
}

func collectLessons(rows pgx.Rows) ([]*model.Lesson, error) {
	defer rows.Close()

	var lessons []*model.Lesson
	for rows.Next() {
		lesson, err := scanLesson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		lessons = append(lessons, lesson)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lessons: %w", err)
	}
	return lessons, nil
}

// Create создаёт занятие. Пересечение по exclusion constraint возвращается как base.ErrOverlap
func (r *LessonRepository) Create(ctx context.Context, lesson *model.Lesson) error {
	query := `
		INSERT INTO lessons (title, teacher_id, student_id, start_time, end_time, status, series_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	err := r.QueryRow(
		ctx,
		query,
		lesson.Title,
		lesson.TeacherID,
		lesson.StudentID,
		lesson.StartTime,
		lesson.EndTime,
		lesson.Status,
		lesson.SeriesID,
	).Scan(&lesson.ID, &lesson.CreatedAt, &lesson.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create lesson: %w", base.MapError(err))
	}

	return nil
}

// GetByID получает занятие по ID
func (r *LessonRepository) GetByID(ctx context.Context, id int64) (*model.Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons WHERE id = $1`

	lesson, err := scanLesson(r.QueryRow(ctx, query, id))
	if base.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get lesson by id: %w", err)
	}

	return lesson, nil
}

// ListForParticipants возвращает занятия, где любой из участников преподаёт или учится,
// пересекающие [from, to). Отменённые тоже возвращаются, фильтрует вызывающий
func (r *LessonRepository) ListForParticipants(ctx context.Context, participantIDs []int64, from, to time.Time) ([]*model.Lesson, error) {
	query := `
		SELECT ` + lessonColumns + `
		FROM lessons
		WHERE (teacher_id = ANY($1) OR student_id = ANY($1))
		  AND start_time < $3 AND end_time > $2
		ORDER BY start_time, id
	`

	rows, err := r.Query(ctx, query, participantIDs, from, to)
	if err != nil {
		return nil, fmt.Errorf("list lessons for participants: %w", err)
	}

	return collectLessons(rows)
}

// Update сохраняет время, статус и название занятия
func (r *LessonRepository) Update(ctx context.Context, lesson *model.Lesson) error {
	query := `
		UPDATE lessons
		SET title = $2, start_time = $3, end_time = $4, status = $5, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.QueryRow(ctx, query, lesson.ID, lesson.Title, lesson.StartTime, lesson.EndTime, lesson.Status).
		Scan(&lesson.UpdatedAt)

	if base.IsNotFound(err) {
		return fmt.Errorf("update lesson %d: %w", lesson.ID, base.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update lesson: %w", base.MapError(err))
	}

	return nil
}

// Delete удаляет занятие, возвращает false если его не было
func (r *LessonRepository) Delete(ctx context.Context, id int64) (bool, error) {
	affected, err := base.ExecAffected(ctx, r.Pool(), `DELETE FROM lessons WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete lesson: %w", err)
	}
	return affected > 0, nil
}

// CancelSeriesFrom отменяет все запланированные занятия серии, начинающиеся не раньше from
func (r *LessonRepository) CancelSeriesFrom(ctx context.Context, seriesID uuid.UUID, from time.Time) ([]*model.Lesson, error) {
	query := `
		UPDATE lessons
		SET status = 'cancelled', updated_at = now()
		WHERE series_id = $1 AND status = 'scheduled' AND start_time >= $2
		RETURNING ` + lessonColumns

	rows, err := r.Query(ctx, query, seriesID, from)
	if err != nil {
		return nil, fmt.Errorf("cancel series lessons: %w", err)
	}

	lessons, err := collectLessons(rows)
	if err != nil {
		return nil, err
	}

	r.logger.Info("Series lessons cancelled",
		zap.String("series_id", seriesID.String()),
		zap.Int("count", len(lessons)))

	return lessons, nil
}
