package httpd

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/codeschool/lms-service/internal/middleware"
	"github.com/codeschool/lms-service/internal/models"
)

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	student, err := h.studentService.GetStudent(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, student)
}

func (h *Handler) GetStudent(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "id")
	if studentID == "" {
		writeError(w, http.StatusBadRequest, "Student ID is required")
		return
	}

	student, err := h.studentService.GetStudent(r.Context(), studentID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, student)
}

// UpsertStudent mirrors a profile from the auth provider into the local table.
func (h *Handler) UpsertStudent(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "id")
	if studentID == "" {
		writeError(w, http.StatusBadRequest, "Student ID is required")
		return
	}

	var req models.UpsertStudentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	student, err := h.studentService.UpsertStudent(r.Context(), studentID, &req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, student)
}
