package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/service"
)

// HandleSuggestSlots POST /api/suggest-slots
func (h *Handlers) HandleSuggestSlots(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	suggestions, err := h.lessons.SuggestSlots(r.Context(), req.toService())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestResponse{Suggestions: suggestions})
}

// HandleCreateLesson POST /api/lessons
func (h *Handlers) HandleCreateLesson(w http.ResponseWriter, r *http.Request) {
	var req createLessonRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	lesson, err := h.lessons.CreateLesson(r.Context(), service.CreateLessonInput{
		Title:     req.Title,
		TeacherID: req.TeacherID,
		StudentID: req.StudentID,
		Start:     req.Date,
		Duration:  time.Duration(req.Duration) * time.Minute,
		Status:    model.LessonStatus(req.Status),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLessonDTO(lesson))
}

// HandleListLessons GET /api/lessons?participantId=&from=&to=
func (h *Handlers) HandleListLessons(w http.ResponseWriter, r *http.Request) {
	participantID, err := queryInt64(r, "participantId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	from, err := queryTime(r, "from")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	to, err := queryTime(r, "to")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	lessons, err := h.lessons.ListLessons(r.Context(), participantID, from, to)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLessonDTOs(lessons))
}

// HandleGetLesson GET /api/lessons/{id}
func (h *Handlers) HandleGetLesson(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	lesson, err := h.lessons.GetLesson(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLessonDTO(lesson))
}

// HandlePatchLesson PATCH /api/lessons/{id}
// Перенос и смена статуса применяются вместе или не применяются вовсе
func (h *Handlers) HandlePatchLesson(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req patchLessonRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Status == nil && req.Date == nil && req.Duration == nil {
		h.writeError(w, r, badRequestf("nothing to change: expected status or date"))
		return
	}

	var patch service.LessonPatch
	patch.Start = req.Date
	if req.Duration != nil {
		d := time.Duration(*req.Duration) * time.Minute
		patch.Duration = &d
	}
	if req.Status != nil {
		status := model.LessonStatus(*req.Status)
		patch.Status = &status
	}

	lesson, err := h.lessons.Update(r.Context(), id, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toLessonDTO(lesson))
}

// HandleDeleteLesson DELETE /api/lessons/{id}
func (h *Handlers) HandleDeleteLesson(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.lessons.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleCreateRecurring POST /api/lessons/recurring
// Частичный успех - тоже 201, пропущенные кандидаты в skipped
func (h *Handlers) HandleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	var req recurringRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Interval == 0 {
		req.Interval = 1
	}

	result, err := h.series.GenerateSeries(r.Context(), service.CreateSeriesInput{
		Title:         req.Title,
		TeacherID:     req.TeacherID,
		StudentID:     req.StudentID,
		Start:         req.StartDate,
		Duration:      time.Duration(req.Duration) * time.Minute,
		IntervalWeeks: req.Interval,
		Count:         req.Count,
		ByDay:         req.ByDay,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecurringResponse(result))
}

// HandleCancelSeries DELETE /api/series/{id}
func (h *Handlers) HandleCancelSeries(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["id"]
	seriesID, err := uuid.Parse(raw)
	if err != nil {
		h.writeError(w, r, badRequestf("invalid series id %q", raw))
		return
	}

	cancelled, err := h.series.CancelSeries(r.Context(), seriesID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"cancelled": cancelled})
}
