package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/repository/base"
)

// AvailabilityRepository хранит недельные правила и исключения пользователей
type AvailabilityRepository struct {
	*base.Repository
	logger *zap.Logger
}

// NewAvailabilityRepository создаёт новый репозиторий
func NewAvailabilityRepository(pool *pgxpool.Pool, logger *zap.Logger) *AvailabilityRepository {
	return &AvailabilityRepository{
		Repository: base.NewRepository(pool),
		logger:     logger,
	}
}

// Replace атомарно заменяет всю доступность пользователя: старые правила и исключения
// удаляются и вставляются новые в одной транзакции
func (r *AvailabilityRepository) Replace(ctx context.Context, av *model.Availability) error {
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM weekly_rules WHERE user_id = $1`, av.UserID); err != nil {
			return fmt.Errorf("delete weekly rules: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM availability_exceptions WHERE user_id = $1`, av.UserID); err != nil {
			return fmt.Errorf("delete exceptions: %w", err)
		}

		for i := range av.WeeklyRules {
			rule := &av.WeeklyRules[i]
			rule.UserID = av.UserID
			err := tx.QueryRow(ctx, `
				INSERT INTO weekly_rules (user_id, day_of_week, start_minute, end_minute)
				VALUES ($1, $2, $3, $4)
				RETURNING id
			`, av.UserID, rule.DayOfWeek, int(rule.StartTime), int(rule.EndTime)).Scan(&rule.ID)
			if err != nil {
				return fmt.Errorf("insert weekly rule: %w", base.MapError(err))
			}
		}

		for i := range av.Exceptions {
			ex := &av.Exceptions[i]
			ex.UserID = av.UserID
			slots := ex.Slots
			if slots == nil {
				slots = []model.TimeRange{}
			}
			err := tx.QueryRow(ctx, `
				INSERT INTO availability_exceptions (user_id, date, slots)
				VALUES ($1, $2, $3)
				RETURNING id
			`, av.UserID, ex.Date, slots).Scan(&ex.ID)
			if err != nil {
				return fmt.Errorf("insert exception: %w", base.MapError(err))
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace availability: %w", err)
	}

	r.logger.Info("Availability replaced",
		zap.Int64("user_id", av.UserID),
		zap.Int("rules", len(av.WeeklyRules)),
		zap.Int("exceptions", len(av.Exceptions)))

	return nil
}

// Get возвращает правила и исключения пользователя. Пустая доступность - не ошибка
func (r *AvailabilityRepository) Get(ctx context.Context, userID int64) (*model.Availability, error) {
	av := &model.Availability{
		UserID:      userID,
		WeeklyRules: []model.WeeklyRule{},
		Exceptions:  []model.AvailabilityException{},
	}

	rows, err := r.Query(ctx, `
		SELECT id, day_of_week, start_minute, end_minute
		FROM weekly_rules
		WHERE user_id = $1
		ORDER BY day_of_week, start_minute
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("get weekly rules: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var start, end int
		rule := model.WeeklyRule{UserID: userID}
		if err := rows.Scan(&rule.ID, &rule.DayOfWeek, &start, &end); err != nil {
			return nil, fmt.Errorf("scan weekly rule: %w", err)
		}
		rule.StartTime = model.TimeOfDay(start)
		rule.EndTime = model.TimeOfDay(end)
		av.WeeklyRules = append(av.WeeklyRules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate weekly rules: %w", err)
	}

	exRows, err := r.Query(ctx, `
		SELECT id, date, slots
		FROM availability_exceptions
		WHERE user_id = $1
		ORDER BY date
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("get exceptions: %w", err)
	}
	defer exRows.Close()

	for exRows.Next() {
		ex := model.AvailabilityException{UserID: userID}
		if err := exRows.Scan(&ex.ID, &ex.Date, &ex.Slots); err != nil {
			return nil, fmt.Errorf("scan exception: %w", err)
		}
		av.Exceptions = append(av.Exceptions, ex)
	}
	if err := exRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exceptions: %w", err)
	}

	return av, nil
}
