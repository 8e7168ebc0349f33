package controller

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Freeeeeet/lesson_scheduler/internal/controller/handlers"
	"github.com/Freeeeeet/lesson_scheduler/internal/metrics"
)

// NewRouter регистрирует все маршруты HTTP API
func NewRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(h.Instrument)

	// Занятия
	api.HandleFunc("/suggest-slots", h.HandleSuggestSlots).Methods(http.MethodPost)
	api.HandleFunc("/lessons", h.HandleCreateLesson).Methods(http.MethodPost)
	api.HandleFunc("/lessons", h.HandleListLessons).Methods(http.MethodGet)
	api.HandleFunc("/lessons/recurring", h.HandleCreateRecurring).Methods(http.MethodPost)
	api.HandleFunc("/lessons/{id:[0-9]+}", h.HandleGetLesson).Methods(http.MethodGet)
	api.HandleFunc("/lessons/{id:[0-9]+}", h.HandlePatchLesson).Methods(http.MethodPatch)
	api.HandleFunc("/lessons/{id:[0-9]+}", h.HandleDeleteLesson).Methods(http.MethodDelete)
	api.HandleFunc("/series/{id}", h.HandleCancelSeries).Methods(http.MethodDelete)

	// Доступность и выходные
	api.HandleFunc("/availability/me", h.HandlePutMyAvailability).Methods(http.MethodPut)
	api.HandleFunc("/availability/{userId:[0-9]+}", h.HandleGetAvailability).Methods(http.MethodGet)
	api.HandleFunc("/users/{userId:[0-9]+}/free", h.HandleFreeIntervals).Methods(http.MethodGet)
	api.HandleFunc("/holidays", h.HandleAddHoliday).Methods(http.MethodPost)
	api.HandleFunc("/holidays", h.HandleListHolidays).Methods(http.MethodGet)
	api.HandleFunc("/holidays/{date}", h.HandleDeleteHoliday).Methods(http.MethodDelete)

	// Курсы и записи
	api.HandleFunc("/courses", h.HandleCreateCourse).Methods(http.MethodPost)
	api.HandleFunc("/courses/{id:[0-9]+}", h.HandleGetCourse).Methods(http.MethodGet)
	api.HandleFunc("/courses/{id:[0-9]+}/capacity", h.HandleSetCapacity).Methods(http.MethodPut)
	api.HandleFunc("/courses/{id:[0-9]+}/enrollments", h.HandleListEnrollments).Methods(http.MethodGet)
	api.HandleFunc("/enroll", h.HandleEnroll).Methods(http.MethodPost)
	api.HandleFunc("/enrollments/{id:[0-9]+}", h.HandleSetEnrollmentStatus).Methods(http.MethodPatch)
	api.HandleFunc("/enrollments/{id:[0-9]+}", h.HandleDropEnrollment).Methods(http.MethodDelete)

	return r
}
