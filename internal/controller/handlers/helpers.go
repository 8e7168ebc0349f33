package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Freeeeeet/lesson_scheduler/internal/ctxutil"
	"github.com/Freeeeeet/lesson_scheduler/internal/metrics"
	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/observability"
	"github.com/Freeeeeet/lesson_scheduler/internal/service"
)

// maxBodyBytes ограничивает размер тела запроса
const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

func badRequestf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

type errorResponse struct {
	Error                string  `json:"error"`
	ConflictingLessonIDs []int64 `json:"conflictingLessonIds,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// writeError переводит ошибку сервиса в HTTP статус. Неизвестные ошибки
// логируются и уходят в Sentry, клиент видит только общий текст
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorResponse{Error: err.Error()}
	var code int

	var conflict *service.ConflictError
	switch {
	case errors.As(err, &conflict):
		code = http.StatusConflict
		resp.ConflictingLessonIDs = conflict.LessonIDs
	case errors.Is(err, errBadRequest), errors.Is(err, service.ErrValidation):
		code = http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, service.ErrConflict),
		errors.Is(err, service.ErrCapacityExceeded),
		errors.Is(err, service.ErrAlreadyEnrolled),
		errors.Is(err, service.ErrInvalidTransition):
		code = http.StatusConflict
	default:
		op, _ := ctxutil.Op(r.Context())
		h.logger.Error("Request failed",
			zap.String("op", op),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		observability.CaptureOpErr(op, err)
		metrics.HTTPErrors.Inc()

		code = http.StatusInternalServerError
		resp.Error = "internal error"
	}

	writeJSON(w, code, resp)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return badRequestf("invalid JSON payload: %v", err)
	}
	return nil
}

func pathInt64(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequestf("invalid %s %q", name, raw)
	}
	return id, nil
}

func queryInt64(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, badRequestf("%s is required", name)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, badRequestf("invalid %s %q", name, raw)
	}
	return v, nil
}

// queryTime читает RFC3339 момент из query
func queryTime(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, badRequestf("%s is required", name)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, badRequestf("invalid %s %q, expected RFC3339", name, raw)
	}
	return t, nil
}

// queryDate читает календарный день YYYY-MM-DD из query
func queryDate(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, badRequestf("%s is required", name)
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		return time.Time{}, badRequestf("invalid %s %q, expected YYYY-MM-DD", name, raw)
	}
	return d, nil
}
