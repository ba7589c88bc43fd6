package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codeschool/lms-service/internal/models"
	"github.com/codeschool/lms-service/internal/repository"
	"github.com/codeschool/lms-service/internal/service/progression"
)

type ProgressService interface {
	MarkCompleted(ctx context.Context, studentID, lessonID string) (*models.LessonProgress, error)
}

type progressService struct {
	loader *courseLoader
	logger zerolog.Logger
}

func NewProgressService(
	courseRepo repository.CourseRepository,
	enrollmentRepo repository.EnrollmentRepository,
	progressRepo repository.ProgressRepository,
	homeworkRepo repository.HomeworkRepository,
	logger zerolog.Logger,
) ProgressService {
	return &progressService{
		loader: &courseLoader{
			courseRepo:     courseRepo,
			enrollmentRepo: enrollmentRepo,
			progressRepo:   progressRepo,
			homeworkRepo:   homeworkRepo,
		},
		logger: logger,
	}
}

// MarkCompleted is idempotent: completing a lesson twice keeps the first completion time.
func (s *progressService) MarkCompleted(ctx context.Context, studentID, lessonID string) (*models.LessonProgress, error) {
	lc, err := s.loader.byLesson(ctx, studentID, lessonID)
	if err != nil {
		return nil, err
	}

	state, ok := lc.state(lessonID)
	if !ok {
		return nil, fmt.Errorf("lesson %s is not part of the course sequence: %w", lessonID, ErrNotFound)
	}
	if !state.IsUnlocked {
		return nil, &LessonLockedError{CourseSlug: lc.course.Slug, LessonID: lessonID}
	}

	now := time.Now()
	progress := &models.LessonProgress{
		ID:          uuid.New().String(),
		StudentID:   studentID,
		LessonID:    lessonID,
		IsCompleted: true,
		CompletedAt: &now,
	}
	if err := s.loader.progressRepo.Upsert(ctx, progress); err != nil {
		return nil, fmt.Errorf("failed to save progress: %w", err)
	}

	s.logger.Info().
		Str("student_id", studentID).
		Str("lesson_id", lessonID).
		Msg("Lesson completed")

	lc.withCompleted(*progress)
	if err := completeEnrollment(ctx, s.loader.enrollmentRepo, lc.courseSnapshot, s.logger); err != nil {
		return nil, err
	}

	return progress, nil
}

// completeEnrollment marks the enrollment completed once every lesson in the
// snapshot is completed with its homework cleared.
func completeEnrollment(ctx context.Context, repo repository.EnrollmentRepository, snapshot *courseSnapshot, logger zerolog.Logger) error {
	if snapshot.enrollment.Status == models.EnrollmentStatusCompleted.String() {
		return nil
	}
	if !progression.Finished(snapshot.states) {
		return nil
	}

	now := time.Now()
	if err := repo.MarkCompleted(ctx, snapshot.enrollment.ID, now); err != nil {
		return fmt.Errorf("failed to complete enrollment: %w", err)
	}
	snapshot.enrollment.Status = models.EnrollmentStatusCompleted.String()
	snapshot.enrollment.CompletedAt = &now

	logger.Info().
		Str("student_id", snapshot.enrollment.StudentID).
		Str("course_id", snapshot.course.ID).
		Msg("Course completed")

	return nil
}
