package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/codeschool/lms-service/internal/models"
	"github.com/codeschool/lms-service/internal/repository"
	"github.com/codeschool/lms-service/internal/service/progression"
)

// LessonLockedError carries the course to send the student back to.
type LessonLockedError struct {
	CourseSlug string
	LessonID   string
}

func (e *LessonLockedError) Error() string {
	return fmt.Sprintf("lesson %s is locked", e.LessonID)
}

func (e *LessonLockedError) Unwrap() error {
	return ErrLessonLocked
}

// CourseSlugOf returns the course slug attached to a locked-lesson error.
func CourseSlugOf(err error) (string, bool) {
	var locked *LessonLockedError
	if errors.As(err, &locked) {
		return locked.CourseSlug, true
	}
	return "", false
}

// courseSnapshot is everything needed to evaluate one student's progress
// through one course.
type courseSnapshot struct {
	course     *models.Course
	enrollment *models.StudentEnrollment
	modules    []models.Module
	lessons    []models.Lesson
	progress   []models.LessonProgress
	homework   []models.HomeworkSubmission
	states     []progression.LessonState
}

func (c *courseSnapshot) evaluate() {
	c.states = progression.Evaluate(c.modules, c.lessons, c.progress, c.homework)
}

func (c *courseSnapshot) state(lessonID string) (progression.LessonState, bool) {
	idx := progression.Find(c.states, lessonID)
	if idx < 0 {
		return progression.LessonState{}, false
	}
	return c.states[idx], true
}

func (c *courseSnapshot) submission(lessonID string) *models.HomeworkSubmission {
	for i := range c.homework {
		if c.homework[i].LessonID == lessonID {
			return &c.homework[i]
		}
	}
	return nil
}

// withCompleted records p and re-evaluates the snapshot.
func (c *courseSnapshot) withCompleted(p models.LessonProgress) {
	for i := range c.progress {
		if c.progress[i].LessonID == p.LessonID {
			c.progress[i] = p
			c.evaluate()
			return
		}
	}
	c.progress = append(c.progress, p)
	c.evaluate()
}

func (c *courseSnapshot) withSubmission(sub models.HomeworkSubmission) {
	for i := range c.homework {
		if c.homework[i].LessonID == sub.LessonID {
			c.homework[i] = sub
			c.evaluate()
			return
		}
	}
	c.homework = append(c.homework, sub)
	c.evaluate()
}

type lessonContext struct {
	*courseSnapshot
	lesson *models.Lesson
	module *models.Module
}

type courseLoader struct {
	courseRepo     repository.CourseRepository
	enrollmentRepo repository.EnrollmentRepository
	progressRepo   repository.ProgressRepository
	homeworkRepo   repository.HomeworkRepository
}

func (l *courseLoader) bySlug(ctx context.Context, studentID, slug string) (*courseSnapshot, error) {
	course, err := l.courseRepo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	if course == nil {
		return nil, fmt.Errorf("course %s: %w", slug, ErrNotFound)
	}

	return l.forCourse(ctx, studentID, course)
}

func (l *courseLoader) byLesson(ctx context.Context, studentID, lessonID string) (*lessonContext, error) {
	lesson, err := l.courseRepo.GetLesson(ctx, lessonID)
	if err != nil {
		return nil, fmt.Errorf("failed to get lesson: %w", err)
	}
	if lesson == nil {
		return nil, fmt.Errorf("lesson %s: %w", lessonID, ErrNotFound)
	}

	module, err := l.courseRepo.GetModule(ctx, lesson.ModuleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get module: %w", err)
	}
	if module == nil {
		return nil, fmt.Errorf("module %s: %w", lesson.ModuleID, ErrNotFound)
	}

	course, err := l.courseRepo.GetByID(ctx, module.CourseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	if course == nil {
		return nil, fmt.Errorf("course %s: %w", module.CourseID, ErrNotFound)
	}

	snapshot, err := l.forCourse(ctx, studentID, course)
	if err != nil {
		return nil, err
	}

	return &lessonContext{courseSnapshot: snapshot, lesson: lesson, module: module}, nil
}

func (l *courseLoader) forCourse(ctx context.Context, studentID string, course *models.Course) (*courseSnapshot, error) {
	enrollment, err := l.enrollmentRepo.Get(ctx, studentID, course.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}
	if enrollment == nil {
		return nil, fmt.Errorf("course %s: %w", course.Slug, ErrNotEnrolled)
	}

	return l.load(ctx, studentID, course, enrollment)
}

func (l *courseLoader) load(ctx context.Context, studentID string, course *models.Course, enrollment *models.StudentEnrollment) (*courseSnapshot, error) {
	modules, err := l.courseRepo.ListModules(ctx, course.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list modules: %w", err)
	}

	lessons, err := l.courseRepo.ListLessons(ctx, course.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lessons: %w", err)
	}

	lessonIDs := make([]string, 0, len(lessons))
	for _, lesson := range lessons {
		lessonIDs = append(lessonIDs, lesson.ID)
	}

	progress, err := l.progressRepo.ListByStudent(ctx, studentID, lessonIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}

	homework, err := l.homeworkRepo.ListByStudent(ctx, studentID, lessonIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list homework: %w", err)
	}

	snapshot := &courseSnapshot{
		course:     course,
		enrollment: enrollment,
		modules:    modules,
		lessons:    lessons,
		progress:   progress,
		homework:   homework,
	}
	snapshot.evaluate()

	return snapshot, nil
}
