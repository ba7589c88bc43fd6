package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/codeschool/lms-service/internal/models"
	"github.com/codeschool/lms-service/internal/repository"
	"github.com/codeschool/lms-service/internal/service/progression"
)

type LearningService interface {
	CourseOverview(ctx context.Context, studentID, courseSlug string) (*models.CourseOverview, error)
	LessonView(ctx context.Context, studentID, lessonID string) (*models.LessonView, error)
	Dashboard(ctx context.Context, studentID string) ([]models.EnrollmentProgress, error)
}

type learningService struct {
	loader *courseLoader
	logger zerolog.Logger
}

func NewLearningService(
	courseRepo repository.CourseRepository,
	enrollmentRepo repository.EnrollmentRepository,
	progressRepo repository.ProgressRepository,
	homeworkRepo repository.HomeworkRepository,
	logger zerolog.Logger,
) LearningService {
	return &learningService{
		loader: &courseLoader{
			courseRepo:     courseRepo,
			enrollmentRepo: enrollmentRepo,
			progressRepo:   progressRepo,
			homeworkRepo:   homeworkRepo,
		},
		logger: logger,
	}
}

func (s *learningService) CourseOverview(ctx context.Context, studentID, courseSlug string) (*models.CourseOverview, error) {
	snapshot, err := s.loader.bySlug(ctx, studentID, courseSlug)
	if err != nil {
		return nil, err
	}

	byModule := make(map[string][]models.LessonStateResponse, len(snapshot.modules))
	for _, st := range snapshot.states {
		byModule[st.Lesson.ModuleID] = append(byModule[st.Lesson.ModuleID], st.Response())
	}

	overview := &models.CourseOverview{
		Course:     *snapshot.course,
		Enrollment: *snapshot.enrollment,
		Modules:    make([]models.ModuleOverview, 0, len(snapshot.modules)),
		Progress:   progression.Summarize(snapshot.states),
	}
	for _, m := range progression.OrderModules(snapshot.modules) {
		lessons := byModule[m.ID]
		if lessons == nil {
			lessons = []models.LessonStateResponse{}
		}
		overview.Modules = append(overview.Modules, models.ModuleOverview{
			Module:  m,
			Lessons: lessons,
		})
	}

	s.logger.Debug().
		Str("student_id", studentID).
		Str("course_id", snapshot.course.ID).
		Int("percent", overview.Progress.Percent).
		Msg("Course overview built")

	return overview, nil
}

func (s *learningService) LessonView(ctx context.Context, studentID, lessonID string) (*models.LessonView, error) {
	lc, err := s.loader.byLesson(ctx, studentID, lessonID)
	if err != nil {
		return nil, err
	}

	state, ok := lc.state(lessonID)
	if !ok {
		return nil, fmt.Errorf("lesson %s is not part of the course sequence: %w", lessonID, ErrNotFound)
	}
	if !state.IsUnlocked {
		s.logger.Info().
			Str("student_id", studentID).
			Str("lesson_id", lessonID).
			Msg("Locked lesson requested")
		return nil, &LessonLockedError{CourseSlug: lc.course.Slug, LessonID: lessonID}
	}

	return &models.LessonView{
		Course:     *lc.course,
		Module:     *lc.module,
		State:      state.Response(),
		Navigation: progression.Resolve(lc.states, lessonID).Response(),
		Submission: lc.submission(lessonID),
	}, nil
}

func (s *learningService) Dashboard(ctx context.Context, studentID string) ([]models.EnrollmentProgress, error) {
	enrollments, err := s.loader.enrollmentRepo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}

	result := make([]models.EnrollmentProgress, 0, len(enrollments))
	for i := range enrollments {
		enrollment := enrollments[i]

		course, err := s.loader.courseRepo.GetByID(ctx, enrollment.CourseID)
		if err != nil {
			return nil, fmt.Errorf("failed to get course: %w", err)
		}
		if course == nil {
			s.logger.Warn().
				Str("student_id", studentID).
				Str("course_id", enrollment.CourseID).
				Msg("Enrollment points to a missing course")
			continue
		}

		snapshot, err := s.loader.load(ctx, studentID, course, &enrollment)
		if err != nil {
			return nil, err
		}

		result = append(result, models.EnrollmentProgress{
			Course:     *course,
			Enrollment: enrollment,
			Progress:   progression.Summarize(snapshot.states),
		})
	}

	return result, nil
}
