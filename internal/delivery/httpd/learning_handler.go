package httpd

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/codeschool/lms-service/internal/middleware"
)

func (h *Handler) GetMyCourses(w http.ResponseWriter, r *http.Request) {
	studentID := middleware.UserIDFromContext(r.Context())

	courses, err := h.learningService.Dashboard(r.Context(), studentID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, courses)
}

func (h *Handler) GetCourseOverview(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if slug == "" {
		writeError(w, http.StatusBadRequest, "Course slug is required")
		return
	}

	studentID := middleware.UserIDFromContext(r.Context())
	overview, err := h.learningService.CourseOverview(r.Context(), studentID, slug)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, overview)
}

func (h *Handler) GetLesson(w http.ResponseWriter, r *http.Request) {
	lessonID, ok := h.pathID(w, r, "lesson")
	if !ok {
		return
	}

	studentID := middleware.UserIDFromContext(r.Context())
	view, err := h.learningService.LessonView(r.Context(), studentID, lessonID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, view)
}

func (h *Handler) CompleteLesson(w http.ResponseWriter, r *http.Request) {
	lessonID, ok := h.pathID(w, r, "lesson")
	if !ok {
		return
	}

	studentID := middleware.UserIDFromContext(r.Context())
	progress, err := h.progressService.MarkCompleted(r.Context(), studentID, lessonID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, progress)
}
