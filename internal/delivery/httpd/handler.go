package httpd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codeschool/lms-service/internal/config"
	"github.com/codeschool/lms-service/internal/middleware"
	"github.com/codeschool/lms-service/internal/service"
)

const dashboardPath = "/me/courses"

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	learningService service.LearningService
	progressService service.ProgressService
	homeworkService service.HomeworkService
	studentService  service.StudentService
	db              Pinger
	auth            config.AuthConfig
	validate        *validator.Validate
	logger          zerolog.Logger
}

func NewHandler(
	learningService service.LearningService,
	progressService service.ProgressService,
	homeworkService service.HomeworkService,
	studentService service.StudentService,
	db Pinger,
	auth config.AuthConfig,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		learningService: learningService,
		progressService: progressService,
		homeworkService: homeworkService,
		studentService:  studentService,
		db:              db,
		auth:            auth,
		validate:        newValidator(),
		logger:          logger,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/health", h.HealthCheck)
	router.Get("/health/ready", h.ReadinessCheck)

	router.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Authenticate(h.auth.JWTSecret, h.auth.Issuer, h.logger))

		api.Get("/me", h.GetMe)
		api.Get("/me/courses", h.GetMyCourses)
		api.Get("/courses/{slug}", h.GetCourseOverview)

		api.Get("/lessons/{id}", h.GetLesson)
		api.Post("/lessons/{id}/complete", h.CompleteLesson)
		api.Get("/lessons/{id}/homework", h.GetHomework)
		api.Put("/lessons/{id}/homework", h.SubmitHomework)

		api.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(middleware.RoleTeacher, middleware.RoleAdmin))
			r.Get("/reviews", h.GetPendingReviews)
			r.Post("/reviews/{id}", h.ReviewHomework)
		})

		api.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(middleware.RoleAdmin))
			r.Get("/students/{id}", h.GetStudent)
			r.Put("/students/{id}", h.UpsertStudent)
		})
	})
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"service":   "lms-service",
		"timestamp": time.Now().UTC(),
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn().Err(err).Msg("Database is not reachable")
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":   "unavailable",
			"database": "down",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ready",
		"database": "up",
	})
}

// handleServiceError maps service errors to statuses. Access failures carry a
// redirect_to hint so the client can leave the content instead of showing an error.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrLessonLocked):
		redirect := dashboardPath
		if slug, ok := service.CourseSlugOf(err); ok {
			redirect = "/courses/" + slug
		}
		writeRedirectError(w, http.StatusLocked, err.Error(), redirect)
	case errors.Is(err, service.ErrNotEnrolled):
		writeRedirectError(w, http.StatusForbidden, err.Error(), dashboardPath)
	case errors.Is(err, service.ErrNotFound):
		writeRedirectError(w, http.StatusNotFound, err.Error(), dashboardPath)
	case errors.Is(err, service.ErrNoHomework),
		errors.Is(err, service.ErrEmptyAnswer),
		errors.Is(err, service.ErrInvalidAttachment),
		errors.Is(err, service.ErrInvalidDecision):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrReviewConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Service error")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// pathID reads a UUID path parameter. A malformed id cannot name a stored row,
// so it is answered like any unknown resource.
func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, resource string) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		h.handleServiceError(w, r, fmt.Errorf("%s %q: %w", resource, id, service.ErrNotFound))
		return "", false
	}
	return id, true
}

// decodeAndValidate reads a JSON body into dst and runs its validate tags.
// It writes the 400 response itself and reports whether the caller may go on.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}

	return true
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationMessage(err error) string {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return "Invalid request"
	}

	msgs := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		msgs = append(msgs, field+": failed on "+fe.Tag())
	}
	return strings.Join(msgs, "; ")
}

func getIntQueryParam(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
	})
}

func writeRedirectError(w http.ResponseWriter, status int, message, redirectTo string) {
	writeJSON(w, status, map[string]interface{}{
		"error":       http.StatusText(status),
		"message":     message,
		"redirect_to": redirectTo,
	})
}

func writeSuccess(w http.ResponseWriter, data interface{}) {
	response := map[string]interface{}{
		"success": true,
		"data":    data,
	}
	writeJSON(w, http.StatusOK, response)
}
