package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
)

// HandlePutMyAvailability PUT /api/availability/me
// Правила и исключения заменяются целиком
func (h *Handlers) HandlePutMyAvailability(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req availabilityDTO
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	rules, exceptions, err := req.toModel()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.availability.ReplaceAvailability(r.Context(), userID, rules, exceptions); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetAvailability GET /api/availability/{userId}
func (h *Handlers) HandleGetAvailability(w http.ResponseWriter, r *http.Request) {
	userID, err := pathInt64(r, "userId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	av, err := h.availability.GetAvailability(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAvailabilityDTO(av))
}

// HandleFreeIntervals GET /api/users/{userId}/free?from=&to=
func (h *Handlers) HandleFreeIntervals(w http.ResponseWriter, r *http.Request) {
	userID, err := pathInt64(r, "userId")
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

	free, err := h.availability.FreeIntervals(r.Context(), userID, from, to)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := freeResponse{Intervals: make([]intervalDTO, 0, len(free))}
	for _, iv := range free {
		resp.Intervals = append(resp.Intervals, intervalDTO{Start: iv.Start, End: iv.End})
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleAddHoliday POST /api/holidays
func (h *Handlers) HandleAddHoliday(w http.ResponseWriter, r *http.Request) {
	var req holidayDTO
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	date, err := model.ParseDate(req.Date)
	if err != nil {
		h.writeError(w, r, badRequestf("invalid date %q, expected YYYY-MM-DD", req.Date))
		return
	}

	holiday, err := h.holidays.AddHoliday(r.Context(), date, req.Label)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toHolidayDTO(*holiday))
}

// HandleDeleteHoliday DELETE /api/holidays/{date}
func (h *Handlers) HandleDeleteHoliday(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["date"]
	date, err := model.ParseDate(raw)
	if err != nil {
		h.writeError(w, r, badRequestf("invalid date %q, expected YYYY-MM-DD", raw))
		return
	}

	if err := h.holidays.RemoveHoliday(r.Context(), date); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListHolidays GET /api/holidays?from=&to=
func (h *Handlers) HandleListHolidays(w http.ResponseWriter, r *http.Request) {
	from, err := queryDate(r, "from")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	holidays, err := h.holidays.ListHolidays(r.Context(), from, to)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]holidayDTO, 0, len(holidays))
	for _, hd := range holidays {
		out = append(out, toHolidayDTO(hd))
	}
	writeJSON(w, http.StatusOK, out)
}
