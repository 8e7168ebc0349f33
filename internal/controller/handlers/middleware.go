package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Freeeeeet/lesson_scheduler/internal/ctxutil"
	"github.com/Freeeeeet/lesson_scheduler/internal/metrics"
)

// UserHeader идентифицирует вызывающего. Аутентификация - забота внешнего слоя
const UserHeader = "X-User-ID"

// requireUser достаёт ID пользователя из заголовка.
// Возвращает id и true если OK, иначе сам пишет 401
func (h *Handlers) requireUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.Header.Get(UserHeader)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: UserHeader + " header is required"})
		return 0, false
	}
	return id, true
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.code = code
	s.ResponseWriter.WriteHeader(code)
}

// Instrument считает запросы по шаблону маршрута, кладёт в контекст имя операции
// и ID пользователя, если он передан
func (h *Handlers) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unknown"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		ctx := ctxutil.WithOp(r.Context(), r.Method+" "+route)
		if id, err := strconv.ParseInt(r.Header.Get(UserHeader), 10, 64); err == nil && id > 0 {
			ctx = ctxutil.WithUserID(ctx, id)
		}

		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		started := time.Now()
		next.ServeHTTP(rec, r.WithContext(ctx))

		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.code)).Inc()
		h.logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("code", rec.code),
			zap.Duration("took", time.Since(started)))
	})
}

// Healthz проверяет базу, время пинга уходит в метрики
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 800*time.Millisecond)
	defer cancel()

	t0 := time.Now()
	if err := h.db.Ping(ctx); err != nil {
		http.Error(w, "db not ok: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	metrics.ObserveDBPing(time.Since(t0))
	_, _ = w.Write([]byte("ok"))
}
