package ctxutil

import (
	"context"
	"time"
)

type key int

const (
	keyUserID key = iota
	keyOpName
)

// WithUserID /UserID - прокидываем id вызывающего пользователя из заголовка
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, keyUserID, userID)
}

func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(keyUserID).(int64)
	return id, ok
}

// WithOp /Op - имя операции для логов и Sentry
func WithOp(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, keyOpName, name)
}

func Op(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(keyOpName).(string)
	return s, ok
}

// WithDBTimeout ограничивает операцию таймаутом d. Если у родителя дедлайн
// ближе, остаётся он. d <= 0 - без таймаута
func WithDBTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	if dl, ok := parent.Deadline(); ok && time.Until(dl) < d {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d)
}
