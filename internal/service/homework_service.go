package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/codeschool/lms-service/internal/models"
	"github.com/codeschool/lms-service/internal/repository"
	"github.com/codeschool/lms-service/internal/service/homework"
	"github.com/codeschool/lms-service/internal/service/integration"
)

const (
	defaultReviewsLimit = 20
	maxReviewsLimit     = 100
)

type HomeworkService interface {
	GetSubmission(ctx context.Context, studentID, lessonID string) (*models.HomeworkStateResponse, error)
	Submit(ctx context.Context, studentID, lessonID string, req *models.SubmitHomeworkRequest) (*models.HomeworkSubmission, error)
	Review(ctx context.Context, teacherID, submissionID string, req *models.ReviewHomeworkRequest) (*models.HomeworkSubmission, error)
	PendingReviews(ctx context.Context, page, limit int) (*models.PendingReviewsResponse, error)
}

type homeworkService struct {
	loader    *courseLoader
	publisher integration.EventPublisher
	logger    zerolog.Logger
}

func NewHomeworkService(
	courseRepo repository.CourseRepository,
	enrollmentRepo repository.EnrollmentRepository,
	progressRepo repository.ProgressRepository,
	homeworkRepo repository.HomeworkRepository,
	publisher integration.EventPublisher,
	logger zerolog.Logger,
) HomeworkService {
	return &homeworkService{
		loader: &courseLoader{
			courseRepo:     courseRepo,
			enrollmentRepo: enrollmentRepo,
			progressRepo:   progressRepo,
			homeworkRepo:   homeworkRepo,
		},
		publisher: publisher,
		logger:    logger,
	}
}

func (s *homeworkService) GetSubmission(ctx context.Context, studentID, lessonID string) (*models.HomeworkStateResponse, error) {
	lc, err := s.loader.byLesson(ctx, studentID, lessonID)
	if err != nil {
		return nil, err
	}
	if !lc.lesson.HasHomework() {
		return nil, ErrNoHomework
	}

	sub := lc.submission(lessonID)
	return &models.HomeworkStateResponse{
		Status:     homework.State(sub).String(),
		Submission: sub,
	}, nil
}

func (s *homeworkService) Submit(ctx context.Context, studentID, lessonID string, req *models.SubmitHomeworkRequest) (*models.HomeworkSubmission, error) {
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
	if !lc.lesson.HasHomework() {
		return nil, ErrNoHomework
	}

	current := lc.submission(lessonID)
	out, err := homework.Apply(current, homework.Submit{
		StudentID:   studentID,
		LessonID:    lessonID,
		Answer:      req.AnswerText,
		Attachments: req.Attachments,
	}, time.Now())
	if err != nil {
		return nil, err
	}

	expected := 0
	if current != nil {
		expected = current.Version
	}

	sub := out.Submission
	if err := s.loader.homeworkRepo.Upsert(ctx, &sub, expected); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, fmt.Errorf("%w: submission changed concurrently", ErrInvalidTransition)
		}
		return nil, fmt.Errorf("failed to save submission: %w", err)
	}

	s.logger.Info().
		Str("submission_id", sub.ID).
		Str("student_id", studentID).
		Str("lesson_id", lessonID).
		Str("from", out.From.String()).
		Msg("Homework submitted")

	if out.Cleanup != nil {
		event := &models.AttachmentsSupersededEvent{
			SubmissionID: out.Cleanup.SubmissionID,
			URLs:         out.Cleanup.URLs,
			Timestamp:    time.Now().Unix(),
		}
		if err := s.publisher.PublishAttachmentsSuperseded(ctx, event); err != nil {
			s.logger.Error().Err(err).Str("submission_id", sub.ID).Msg("Failed to publish attachments superseded event")
		}
	}

	return &sub, nil
}

func (s *homeworkService) Review(ctx context.Context, teacherID, submissionID string, req *models.ReviewHomeworkRequest) (*models.HomeworkSubmission, error) {
	details, err := s.loader.homeworkRepo.GetDetails(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	if details == nil {
		return nil, fmt.Errorf("submission %s: %w", submissionID, ErrNotFound)
	}

	current := details.HomeworkSubmission
	if req.Version != 0 && req.Version != current.Version {
		return nil, ErrReviewConflict
	}

	out, err := homework.Apply(&current, homework.Review{
		TeacherID: teacherID,
		Decision:  models.HomeworkStatus(req.Status),
		Feedback:  req.Feedback,
	}, time.Now())
	if err != nil {
		return nil, err
	}

	sub := out.Submission
	if err := s.loader.homeworkRepo.UpdateReview(ctx, &sub, current.Version); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, ErrReviewConflict
		}
		return nil, fmt.Errorf("failed to save review: %w", err)
	}

	s.logger.Info().
		Str("submission_id", sub.ID).
		Str("teacher_id", teacherID).
		Str("decision", sub.Status.String()).
		Msg("Homework reviewed")

	if out.Notify != nil {
		event := &models.HomeworkReviewedEvent{
			SubmissionID: out.Notify.SubmissionID,
			StudentID:    out.Notify.StudentID,
			StudentName:  details.StudentName,
			StudentEmail: details.StudentEmail,
			LessonID:     out.Notify.LessonID,
			LessonTitle:  details.LessonTitle,
			CourseTitle:  details.CourseTitle,
			Decision:     out.Notify.Decision.String(),
			Feedback:     out.Notify.Feedback,
			Timestamp:    time.Now().Unix(),
		}
		if err := s.publisher.PublishHomeworkReviewed(ctx, event); err != nil {
			s.logger.Error().Err(err).Str("submission_id", sub.ID).Msg("Failed to publish homework reviewed event")
		}
	}

	if sub.Status == models.HomeworkStatusApproved {
		s.rollUp(ctx, sub, details.CourseID)
	}

	return &sub, nil
}

// rollUp completes the student's enrollment when this approval was the last
// missing piece. The review is already committed, so failures are only logged.
func (s *homeworkService) rollUp(ctx context.Context, sub models.HomeworkSubmission, courseID string) {
	course, err := s.loader.courseRepo.GetByID(ctx, courseID)
	if err != nil || course == nil {
		s.logger.Error().Err(err).Str("course_id", courseID).Msg("Failed to load course for completion check")
		return
	}

	snapshot, err := s.loader.forCourse(ctx, sub.StudentID, course)
	if err != nil {
		if !errors.Is(err, ErrNotEnrolled) {
			s.logger.Error().Err(err).Str("course_id", courseID).Msg("Failed to load progress for completion check")
		}
		return
	}

	snapshot.withSubmission(sub)
	if err := completeEnrollment(ctx, s.loader.enrollmentRepo, snapshot, s.logger); err != nil {
		s.logger.Error().Err(err).Str("course_id", courseID).Msg("Failed to complete enrollment")
	}
}

func (s *homeworkService) PendingReviews(ctx context.Context, page, limit int) (*models.PendingReviewsResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultReviewsLimit
	}
	if limit > maxReviewsLimit {
		limit = maxReviewsLimit
	}

	subs, total, err := s.loader.homeworkRepo.ListPending(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending reviews: %w", err)
	}
	if subs == nil {
		subs = []models.HomeworkSubmissionWithDetails{}
	}

	return &models.PendingReviewsResponse{
		Submissions: subs,
		Total:       total,
		Page:        page,
		Limit:       limit,
	}, nil
}
