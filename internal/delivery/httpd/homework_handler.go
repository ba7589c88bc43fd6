package httpd

import (
	"net/http"

	"github.com/codeschool/lms-service/internal/middleware"
	"github.com/codeschool/lms-service/internal/models"
)

func (h *Handler) GetHomework(w http.ResponseWriter, r *http.Request) {
	lessonID, ok := h.pathID(w, r, "lesson")
	if !ok {
		return
	}

	studentID := middleware.UserIDFromContext(r.Context())
	state, err := h.homeworkService.GetSubmission(r.Context(), studentID, lessonID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, state)
}

func (h *Handler) SubmitHomework(w http.ResponseWriter, r *http.Request) {
	lessonID, ok := h.pathID(w, r, "lesson")
	if !ok {
		return
	}

	var req models.SubmitHomeworkRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	studentID := middleware.UserIDFromContext(r.Context())
	submission, err := h.homeworkService.Submit(r.Context(), studentID, lessonID, &req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, submission)
}

func (h *Handler) GetPendingReviews(w http.ResponseWriter, r *http.Request) {
	page := getIntQueryParam(r, "page", 1)
	limit := getIntQueryParam(r, "limit", 20)

	response, err := h.homeworkService.PendingReviews(r.Context(), page, limit)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, response)
}

func (h *Handler) ReviewHomework(w http.ResponseWriter, r *http.Request) {
	submissionID, ok := h.pathID(w, r, "submission")
	if !ok {
		return
	}

	var req models.ReviewHomeworkRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	teacherID := middleware.UserIDFromContext(r.Context())
	submission, err := h.homeworkService.Review(r.Context(), teacherID, submissionID, &req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, submission)
}
