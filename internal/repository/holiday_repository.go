package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/repository/base"
)

// HolidayRepository управляет общими выходными днями
type HolidayRepository struct {
	*base.Repository
}

// NewHolidayRepository создаёт новый репозиторий
func NewHolidayRepository(pool *pgxpool.Pool) *HolidayRepository {
	return &HolidayRepository{Repository: base.NewRepository(pool)}
}

// Upsert добавляет выходной или обновляет подпись существующего
func (r *HolidayRepository) Upsert(ctx context.Context, h *model.Holiday) error {
	query := `
		INSERT INTO holidays (date, label)
		VALUES ($1, $2)
		ON CONFLICT (date) DO UPDATE SET label = EXCLUDED.label
		RETURNING created_at
	`

	if err := r.QueryRow(ctx, query, h.Date, h.Label).Scan(&h.CreatedAt); err != nil {
		return fmt.Errorf("upsert holiday: %w", err)
	}
	return nil
}

// Delete удаляет выходной, false если его не было
func (r *HolidayRepository) Delete(ctx context.Context, date time.Time) (bool, error) {
	affected, err := base.ExecAffected(ctx, r.Pool(), `DELETE FROM holidays WHERE date = $1`, date)
	if err != nil {
		return false, fmt.Errorf("delete holiday: %w", err)
	}
	return affected > 0, nil
}

// List возвращает выходные в диапазоне дат [from, to] включительно
func (r *HolidayRepository) List(ctx context.Context, from, to time.Time) ([]model.Holiday, error) {
	query := `
		SELECT date, label, created_at
		FROM holidays
		WHERE date BETWEEN $1 AND $2
		ORDER BY date
	`

	rows, err := r.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("list holidays: %w", err)
	}
	defer rows.Close()

	holidays := []model.Holiday{}
	for rows.Next() {
		var h model.Holiday
		if err := rows.Scan(&h.Date, &h.Label, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan holiday: %w", err)
		}
		holidays = append(holidays, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate holidays: %w", err)
	}

	return holidays, nil
}
