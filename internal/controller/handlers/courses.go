package handlers

import (
	"net/http"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
)

// HandleCreateCourse POST /api/courses
func (h *Handlers) HandleCreateCourse(w http.ResponseWriter, r *http.Request) {
	var req createCourseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	course, err := h.enrollments.CreateCourse(r.Context(), req.TeacherID, req.Title, req.Capacity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCourseDTO(course))
}

// HandleGetCourse GET /api/courses/{id}
func (h *Handlers) HandleGetCourse(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	course, err := h.enrollments.GetCourse(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCourseDTO(course))
}

// HandleSetCapacity PUT /api/courses/{id}/capacity
// capacity: null снимает ограничение
func (h *Handlers) HandleSetCapacity(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req capacityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	course, promoted, err := h.enrollments.SetCapacity(r.Context(), id, req.Capacity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, capacityResponse{courseDTO: toCourseDTO(course), Promoted: toEnrollmentDTOs(promoted)})
}

// HandleListEnrollments GET /api/courses/{id}/enrollments
func (h *Handlers) HandleListEnrollments(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	list, err := h.enrollments.ListEnrollments(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEnrollmentDTOs(list))
}

// HandleEnroll POST /api/enroll
func (h *Handlers) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	enrollment, err := h.enrollments.Enroll(r.Context(), req.CourseID, req.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEnrollmentDTO(enrollment))
}

// HandleSetEnrollmentStatus PATCH /api/enrollments/{id}
func (h *Handlers) HandleSetEnrollmentStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req enrollmentStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	enrollment, promoted, err := h.enrollments.SetStatus(r.Context(), id, model.EnrollmentStatus(req.Status))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, enrollmentChangeResponse{enrollmentDTO: toEnrollmentDTO(enrollment), Promoted: toEnrollmentDTOs(promoted)})
}

// HandleDropEnrollment DELETE /api/enrollments/{id}
func (h *Handlers) HandleDropEnrollment(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	enrollment, promoted, err := h.enrollments.Drop(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, enrollmentChangeResponse{enrollmentDTO: toEnrollmentDTO(enrollment), Promoted: toEnrollmentDTOs(promoted)})
}
