package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/codeschool/lms-service/internal/models"
	"github.com/codeschool/lms-service/internal/repository"
)

// store is an in-memory implementation of every repository the services use.
type store struct {
	mu          sync.Mutex
	courses     map[string]models.Course
	modules     map[string]models.Module
	lessons     map[string]models.Lesson
	enrollments map[string]models.StudentEnrollment // key: student|course
	progress    map[string]models.LessonProgress    // key: student|lesson
	homework    map[string]models.HomeworkSubmission
	students    map[string]models.Student
}

func newStore() *store {
	return &store{
		courses:     map[string]models.Course{},
		modules:     map[string]models.Module{},
		lessons:     map[string]models.Lesson{},
		enrollments: map[string]models.StudentEnrollment{},
		progress:    map[string]models.LessonProgress{},
		homework:    map[string]models.HomeworkSubmission{},
		students:    map[string]models.Student{},
	}
}

func key(a, b string) string { return a + "|" + b }

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// seedCourse creates course "go" with modules m1(l1, l2) and m2(l3, l4).
// l1 has no homework. Student s1 is enrolled, s2 is not.
func seedCourse() *store {
	s := newStore()
	s.courses["c1"] = models.Course{ID: "c1", Title: "Go Basics", Slug: "go", CreatedAt: t0}
	s.modules["m1"] = models.Module{ID: "m1", CourseID: "c1", Title: "Basics", OrderIndex: 1, CreatedAt: t0}
	s.modules["m2"] = models.Module{ID: "m2", CourseID: "c1", Title: "Functions", OrderIndex: 2, CreatedAt: t0}
	s.lessons["l1"] = models.Lesson{ID: "l1", ModuleID: "m1", Title: "Intro", OrderIndex: 1}
	s.lessons["l2"] = models.Lesson{ID: "l2", ModuleID: "m1", Title: "Variables", OrderIndex: 2, HomeworkDescription: "swap two values"}
	s.lessons["l3"] = models.Lesson{ID: "l3", ModuleID: "m2", Title: "Functions", OrderIndex: 1, HomeworkDescription: "fizzbuzz"}
	s.lessons["l4"] = models.Lesson{ID: "l4", ModuleID: "m2", Title: "Closures", OrderIndex: 2, HomeworkDescription: "counter"}
	s.enrollments[key("s1", "c1")] = models.StudentEnrollment{ID: "e1", StudentID: "s1", CourseID: "c1", Status: "active", EnrolledAt: t0}
	s.students["s1"] = models.Student{ID: "s1", Name: "Ada", Email: "ada@example.com"}
	return s
}

func (s *store) complete(studentID string, lessonIDs ...string) {
	for _, id := range lessonIDs {
		s.progress[key(studentID, id)] = models.LessonProgress{ID: "p-" + id, StudentID: studentID, LessonID: id, IsCompleted: true}
	}
}

func (s *store) putHomework(sub models.HomeworkSubmission) {
	s.homework[sub.ID] = sub
}

// CourseRepository

type courseRepo struct{ *store }

func (r courseRepo) GetBySlug(_ context.Context, slug string) (*models.Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.courses {
		if c.Slug == slug {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (r courseRepo) GetByID(_ context.Context, id string) (*models.Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.courses[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (r courseRepo) GetModule(_ context.Context, id string) (*models.Module, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.modules[id]; ok {
		return &m, nil
	}
	return nil, nil
}

func (r courseRepo) GetLesson(_ context.Context, id string) (*models.Lesson, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.lessons[id]; ok {
		return &l, nil
	}
	return nil, nil
}

func (r courseRepo) ListModules(_ context.Context, courseID string) ([]models.Module, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Module
	for _, m := range r.modules {
		if m.CourseID == courseID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r courseRepo) ListLessons(_ context.Context, courseID string) ([]models.Lesson, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Lesson
	for _, l := range r.lessons {
		if m, ok := r.modules[l.ModuleID]; ok && m.CourseID == courseID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// EnrollmentRepository

type enrollmentRepo struct{ *store }

func (r enrollmentRepo) Get(_ context.Context, studentID, courseID string) (*models.StudentEnrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.enrollments[key(studentID, courseID)]; ok {
		return &e, nil
	}
	return nil, nil
}

func (r enrollmentRepo) ListByStudent(_ context.Context, studentID string) ([]models.StudentEnrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.StudentEnrollment
	for _, e := range r.enrollments {
		if e.StudentID == studentID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r enrollmentRepo) MarkCompleted(_ context.Context, id string, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, e := range r.enrollments {
		if e.ID == id {
			e.Status = models.EnrollmentStatusCompleted.String()
			e.CompletedAt = &completedAt
			r.enrollments[k] = e
		}
	}
	return nil
}

// ProgressRepository

type progressRepo struct{ *store }

func (r progressRepo) ListByStudent(_ context.Context, studentID string, lessonIDs []string) ([]models.LessonProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.LessonProgress
	for _, id := range lessonIDs {
		if p, ok := r.progress[key(studentID, id)]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r progressRepo) Upsert(_ context.Context, p *models.LessonProgress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(p.StudentID, p.LessonID)
	if existing, ok := r.progress[k]; ok {
		p.ID = existing.ID
		if existing.CompletedAt != nil {
			p.CompletedAt = existing.CompletedAt
		}
	}
	r.progress[k] = *p
	return nil
}

// HomeworkRepository

type homeworkRepo struct{ *store }

func (r homeworkRepo) find(studentID, lessonID string) (models.HomeworkSubmission, bool) {
	for _, h := range r.homework {
		if h.StudentID == studentID && h.LessonID == lessonID {
			return h, true
		}
	}
	return models.HomeworkSubmission{}, false
}

func (r homeworkRepo) details(h models.HomeworkSubmission) models.HomeworkSubmissionWithDetails {
	d := models.HomeworkSubmissionWithDetails{HomeworkSubmission: h}
	if st, ok := r.students[h.StudentID]; ok {
		d.StudentName, d.StudentEmail = st.Name, st.Email
	}
	if l, ok := r.lessons[h.LessonID]; ok {
		d.LessonTitle = l.Title
		if m, ok := r.modules[l.ModuleID]; ok {
			d.CourseID = m.CourseID
			d.CourseTitle = r.courses[m.CourseID].Title
		}
	}
	return d
}

func (r homeworkRepo) GetDetails(_ context.Context, id string) (*models.HomeworkSubmissionWithDetails, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.homework[id]
	if !ok {
		return nil, nil
	}
	d := r.details(h)
	return &d, nil
}

func (r homeworkRepo) ListByStudent(_ context.Context, studentID string, lessonIDs []string) ([]models.HomeworkSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.HomeworkSubmission
	for _, id := range lessonIDs {
		if h, ok := r.find(studentID, id); ok {
			out = append(out, h)
		}
	}
	return out, nil
}

func (r homeworkRepo) ListPending(_ context.Context, limit, offset int) ([]models.HomeworkSubmissionWithDetails, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []models.HomeworkSubmissionWithDetails
	for _, h := range r.homework {
		if h.Status == models.HomeworkStatusPending {
			all = append(all, r.details(h))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].SubmittedAt.Before(all[j].SubmittedAt) })
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r homeworkRepo) Upsert(_ context.Context, sub *models.HomeworkSubmission, expectedVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.find(sub.StudentID, sub.LessonID)
	if ok {
		if existing.Version != expectedVersion {
			return repository.ErrVersionConflict
		}
		sub.ID = existing.ID
	} else if expectedVersion != 0 {
		return repository.ErrVersionConflict
	}
	r.homework[sub.ID] = *sub
	return nil
}

func (r homeworkRepo) UpdateReview(_ context.Context, sub *models.HomeworkSubmission, expectedVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.homework[sub.ID]
	if !ok || existing.Version != expectedVersion {
		return repository.ErrVersionConflict
	}
	r.homework[sub.ID] = *sub
	return nil
}

// StudentRepository

type studentRepo struct{ *store }

func (r studentRepo) GetByID(_ context.Context, id string) (*models.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.students[id]; ok {
		return &st, nil
	}
	return nil, nil
}

func (r studentRepo) Upsert(_ context.Context, st *models.Student) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.students[st.ID]; ok {
		st.CreatedAt = existing.CreatedAt
	}
	r.students[st.ID] = *st
	return nil
}

// EventPublisher

type recordingPublisher struct {
	mu         sync.Mutex
	reviewed   []models.HomeworkReviewedEvent
	superseded []models.AttachmentsSupersededEvent
	err        error
}

func (p *recordingPublisher) PublishHomeworkReviewed(_ context.Context, e *models.HomeworkReviewedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.reviewed = append(p.reviewed, *e)
	return nil
}

func (p *recordingPublisher) PublishAttachmentsSuperseded(_ context.Context, e *models.AttachmentsSupersededEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.superseded = append(p.superseded, *e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }
