package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/repository/base"
)

// SeriesRepository хранит запросы на создание повторяющихся занятий
type SeriesRepository struct {
	*base.Repository
}

// NewSeriesRepository создаёт новый репозиторий
func NewSeriesRepository(pool *pgxpool.Pool) *SeriesRepository {
	return &SeriesRepository{Repository: base.NewRepository(pool)}
}

// Create сохраняет серию. ID генерируется здесь, если не задан
func (r *SeriesRepository) Create(ctx context.Context, series *model.LessonSeries) error {
	if series.ID == uuid.Nil {
		series.ID = uuid.New()
	}

	query := `
		INSERT INTO lesson_series (id, teacher_id, student_id, title, anchor, duration_minutes, interval_weeks, count, by_day)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`

	err := r.QueryRow(
		ctx,
		query,
		series.ID,
		series.TeacherID,
		series.StudentID,
		series.Title,
		series.Anchor,
		series.DurationMinutes,
		series.IntervalWeeks,
		series.Count,
		series.ByDay,
	).Scan(&series.CreatedAt)

	if err != nil {
		return fmt.Errorf("create lesson series: %w", base.MapError(err))
	}

	return nil
}

// GetByID получает серию по ID
func (r *SeriesRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.LessonSeries, error) {
	query := `
		SELECT id, teacher_id, student_id, title, anchor, duration_minutes, interval_weeks, count, by_day, created_at
		FROM lesson_series
		WHERE id = $1
	`

	series := &model.LessonSeries{}
	err := r.QueryRow(ctx, query, id).Scan(
		&series.ID,
		&series.TeacherID,
		&series.StudentID,
		&series.Title,
		&series.Anchor,
		&series.DurationMinutes,
		&series.IntervalWeeks,
		&series.Count,
		&series.ByDay,
		&series.CreatedAt,
	)

	if base.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get lesson series by id: %w", err)
	}

	return series, nil
}
