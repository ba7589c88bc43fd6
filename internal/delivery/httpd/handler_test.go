package httpd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeschool/lms-service/internal/config"
	"github.com/codeschool/lms-service/internal/middleware"
	"github.com/codeschool/lms-service/internal/models"
	"github.com/codeschool/lms-service/internal/service"
)

const (
	secret       = "handler-test-secret"
	lessonID     = "3f9a7c2e-5b1d-4e8a-9c6f-0d2b4a8e1c73"
	submissionID = "a61e0b4d-7f2c-4c9e-8b35-e2d9f0c4a518"
)

type fakeLearning struct {
	err       error
	studentID string
}

func (f *fakeLearning) CourseOverview(ctx context.Context, studentID, courseSlug string) (*models.CourseOverview, error) {
	f.studentID = studentID
	if f.err != nil {
		return nil, f.err
	}
	return &models.CourseOverview{Course: models.Course{ID: "c1", Slug: courseSlug}}, nil
}

func (f *fakeLearning) LessonView(ctx context.Context, studentID, lessonID string) (*models.LessonView, error) {
	f.studentID = studentID
	if f.err != nil {
		return nil, f.err
	}
	return &models.LessonView{State: models.LessonStateResponse{Lesson: models.Lesson{ID: lessonID}, IsUnlocked: true}}, nil
}

func (f *fakeLearning) Dashboard(ctx context.Context, studentID string) ([]models.EnrollmentProgress, error) {
	f.studentID = studentID
	if f.err != nil {
		return nil, f.err
	}
	return []models.EnrollmentProgress{{Course: models.Course{ID: "c1"}}}, nil
}

type fakeProgress struct{ err error }

func (f *fakeProgress) MarkCompleted(ctx context.Context, studentID, lessonID string) (*models.LessonProgress, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.LessonProgress{StudentID: studentID, LessonID: lessonID, IsCompleted: true}, nil
}

type fakeHomework struct {
	err         error
	page, limit int
	teacherID   string
}

func (f *fakeHomework) GetSubmission(ctx context.Context, studentID, lessonID string) (*models.HomeworkStateResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.HomeworkStateResponse{Status: "none"}, nil
}

func (f *fakeHomework) Submit(ctx context.Context, studentID, lessonID string, req *models.SubmitHomeworkRequest) (*models.HomeworkSubmission, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.HomeworkSubmission{ID: "h1", StudentID: studentID, LessonID: lessonID, AnswerText: req.AnswerText, Status: models.HomeworkStatusPending}, nil
}

func (f *fakeHomework) Review(ctx context.Context, teacherID, submissionID string, req *models.ReviewHomeworkRequest) (*models.HomeworkSubmission, error) {
	f.teacherID = teacherID
	if f.err != nil {
		return nil, f.err
	}
	return &models.HomeworkSubmission{ID: submissionID, Status: models.HomeworkStatus(req.Status)}, nil
}

func (f *fakeHomework) PendingReviews(ctx context.Context, page, limit int) (*models.PendingReviewsResponse, error) {
	f.page, f.limit = page, limit
	if f.err != nil {
		return nil, f.err
	}
	return &models.PendingReviewsResponse{Page: page, Limit: limit}, nil
}

type fakeStudents struct{ err error }

func (f *fakeStudents) GetStudent(ctx context.Context, id string) (*models.Student, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Student{ID: id, Name: "Ada"}, nil
}

func (f *fakeStudents) UpsertStudent(ctx context.Context, id string, req *models.UpsertStudentRequest) (*models.Student, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Student{ID: id, Name: req.Name, Email: req.Email}, nil
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

type fixture struct {
	learning *fakeLearning
	progress *fakeProgress
	homework *fakeHomework
	students *fakeStudents
	pinger   fakePinger
}

func (f *fixture) router() http.Handler {
	h := NewHandler(f.learning, f.progress, f.homework, f.students, f.pinger,
		config.AuthConfig{JWTSecret: secret}, zerolog.Nop())
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func newFixture() *fixture {
	return &fixture{
		learning: &fakeLearning{},
		progress: &fakeProgress{},
		homework: &fakeHomework{},
		students: &fakeStudents{},
	}
}

func token(t *testing.T, userID, role string) string {
	t.Helper()
	claims := middleware.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func do(t *testing.T, h http.Handler, method, path, bearer, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestHealth(t *testing.T) {
	f := newFixture()
	rec, body := do(t, f.router(), http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])

	f.pinger = fakePinger{err: errors.New("connection refused")}
	rec, body = do(t, f.router(), http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "down", body["database"])
}

func TestRequiresToken(t *testing.T) {
	rec, _ := do(t, newFixture().router(), http.MethodGet, "/api/v1/me/courses", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDashboardUsesCallerID(t *testing.T) {
	f := newFixture()
	rec, body := do(t, f.router(), http.MethodGet, "/api/v1/me/courses", token(t, "s1", middleware.RoleStudent), "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "s1", f.learning.studentID)
}

func TestLessonErrorMapping(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantStatus   int
		wantRedirect string
	}{
		{name: "locked", err: &service.LessonLockedError{CourseSlug: "go", LessonID: "l3"}, wantStatus: http.StatusLocked, wantRedirect: "/courses/go"},
		{name: "not enrolled", err: fmt.Errorf("course c1: %w", service.ErrNotEnrolled), wantStatus: http.StatusForbidden, wantRedirect: "/me/courses"},
		{name: "not found", err: service.ErrNotFound, wantStatus: http.StatusNotFound, wantRedirect: "/me/courses"},
		{name: "store failure", err: errors.New("connection reset"), wantStatus: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.learning.err = tt.err

			rec, body := do(t, f.router(), http.MethodGet, "/api/v1/lessons/"+lessonID, token(t, "s1", middleware.RoleStudent), "")

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantRedirect != "" {
				assert.Equal(t, tt.wantRedirect, body["redirect_to"])
			} else {
				assert.NotContains(t, body, "redirect_to")
				assert.Equal(t, "Internal server error", body["message"])
			}
		})
	}
}

func TestCompleteLesson(t *testing.T) {
	f := newFixture()
	rec, body := do(t, f.router(), http.MethodPost, "/api/v1/lessons/"+lessonID+"/complete", token(t, "s1", middleware.RoleStudent), "")

	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, lessonID, data["lesson_id"])
}

func TestSubmitHomework(t *testing.T) {
	student := token(t, "s1", middleware.RoleStudent)

	tests := []struct {
		name        string
		body        string
		serviceErr  error
		wantStatus  int
		wantMessage string
	}{
		{name: "ok", body: `{"answer_text":"done","attachments":[{"type":"link","url":"https://github.com/s1/repo"}]}`, wantStatus: http.StatusOK},
		{name: "malformed json", body: `{`, wantStatus: http.StatusBadRequest, wantMessage: "Invalid request body"},
		{name: "missing answer", body: `{"answer_text":""}`, wantStatus: http.StatusBadRequest, wantMessage: "answer_text"},
		{name: "bad attachment", body: `{"answer_text":"a","attachments":[{"type":"video","url":"https://x.io"}]}`, wantStatus: http.StatusBadRequest, wantMessage: "attachments[0].type"},
		{name: "blank answer", body: `{"answer_text":"  "}`, serviceErr: service.ErrEmptyAnswer, wantStatus: http.StatusBadRequest},
		{name: "already pending", body: `{"answer_text":"a"}`, serviceErr: fmt.Errorf("%w: cannot submit homework that is pending", service.ErrInvalidTransition), wantStatus: http.StatusConflict},
		{name: "no homework", body: `{"answer_text":"a"}`, serviceErr: service.ErrNoHomework, wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.homework.err = tt.serviceErr

			rec, body := do(t, f.router(), http.MethodPut, "/api/v1/lessons/"+lessonID+"/homework", student, tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantMessage != "" {
				assert.Contains(t, body["message"], tt.wantMessage)
			}
		})
	}
}

func TestGetHomework(t *testing.T) {
	rec, body := do(t, newFixture().router(), http.MethodGet, "/api/v1/lessons/"+lessonID+"/homework", token(t, "s1", middleware.RoleStudent), "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "none", body["data"].(map[string]interface{})["status"])
}

func TestReviewsRequireTeacher(t *testing.T) {
	f := newFixture()

	rec, _ := do(t, f.router(), http.MethodGet, "/api/v1/reviews", token(t, "s1", middleware.RoleStudent), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = do(t, f.router(), http.MethodGet, "/api/v1/reviews?page=2&limit=5", token(t, "t1", middleware.RoleTeacher), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, f.homework.page)
	assert.Equal(t, 5, f.homework.limit)

	rec, _ = do(t, f.router(), http.MethodGet, "/api/v1/reviews?page=abc", token(t, "a1", middleware.RoleAdmin), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.homework.page)
}

func TestReviewHomework(t *testing.T) {
	teacher := token(t, "t1", middleware.RoleTeacher)

	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
	}{
		{name: "approve", body: `{"status":"approved","feedback":"nice","version":1}`, wantStatus: http.StatusOK},
		{name: "invalid decision", body: `{"status":"pending"}`, wantStatus: http.StatusBadRequest},
		{name: "stale version", body: `{"status":"rejected","version":1}`, serviceErr: service.ErrReviewConflict, wantStatus: http.StatusConflict},
		{name: "already reviewed", body: `{"status":"rejected"}`, serviceErr: service.ErrInvalidTransition, wantStatus: http.StatusConflict},
		{name: "unknown submission", body: `{"status":"approved"}`, serviceErr: service.ErrNotFound, wantStatus: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.homework.err = tt.serviceErr

			rec, _ := do(t, f.router(), http.MethodPost, "/api/v1/reviews/"+submissionID, teacher, tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "t1", f.homework.teacherID)
			}
		})
	}
}

func TestUpsertStudent(t *testing.T) {
	f := newFixture()

	rec, _ := do(t, f.router(), http.MethodPut, "/api/v1/students/s9", token(t, "t1", middleware.RoleTeacher), `{"name":"Ada","email":"ada@example.com"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := token(t, "a1", middleware.RoleAdmin)
	rec, body := do(t, f.router(), http.MethodPut, "/api/v1/students/s9", admin, `{"name":"Ada","email":"not-an-email"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["message"], "email")

	rec, body = do(t, f.router(), http.MethodPut, "/api/v1/students/s9", admin, `{"name":"Ada","email":"ada@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s9", body["data"].(map[string]interface{})["id"])
}

func TestGetMe(t *testing.T) {
	f := newFixture()
	f.students.err = service.ErrNotFound

	rec, body := do(t, f.router(), http.MethodGet, "/api/v1/me", token(t, "s1", middleware.RoleStudent), "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", body["error"])
}

func TestMalformedIDsRedirectLikeUnknownOnes(t *testing.T) {
	student := token(t, "s1", middleware.RoleStudent)
	teacher := token(t, "t1", middleware.RoleTeacher)

	tests := []struct {
		name   string
		method string
		path   string
		bearer string
		body   string
	}{
		{name: "lesson view", method: http.MethodGet, path: "/api/v1/lessons/abc", bearer: student},
		{name: "complete lesson", method: http.MethodPost, path: "/api/v1/lessons/abc/complete", bearer: student},
		{name: "get homework", method: http.MethodGet, path: "/api/v1/lessons/l2/homework", bearer: student},
		{name: "submit homework", method: http.MethodPut, path: "/api/v1/lessons/1234/homework", bearer: student, body: `{"answer_text":"a"}`},
		{name: "review", method: http.MethodPost, path: "/api/v1/reviews/not-a-uuid", bearer: teacher, body: `{"status":"approved"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.learning.err = errors.New("store must not be queried")
			f.progress.err = f.learning.err
			f.homework.err = f.learning.err

			rec, body := do(t, f.router(), tt.method, tt.path, tt.bearer, tt.body)

			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.Equal(t, "/me/courses", body["redirect_to"])
			assert.Empty(t, f.learning.studentID)
			assert.Empty(t, f.homework.teacherID)
		})
	}
}
