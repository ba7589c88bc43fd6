package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/codeschool/lms-service/internal/models"
	"github.com/codeschool/lms-service/internal/repository"
)

type StudentService interface {
	GetStudent(ctx context.Context, id string) (*models.Student, error)
	UpsertStudent(ctx context.Context, id string, req *models.UpsertStudentRequest) (*models.Student, error)
}

type studentService struct {
	studentRepo repository.StudentRepository
	logger      zerolog.Logger
}

func NewStudentService(studentRepo repository.StudentRepository, logger zerolog.Logger) StudentService {
	return &studentService{
		studentRepo: studentRepo,
		logger:      logger,
	}
}

func (s *studentService) GetStudent(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.studentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	if student == nil {
		return nil, fmt.Errorf("student %s: %w", id, ErrNotFound)
	}
	return student, nil
}

func (s *studentService) UpsertStudent(ctx context.Context, id string, req *models.UpsertStudentRequest) (*models.Student, error) {
	now := time.Now()
	student := &models.Student{
		ID:        id,
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.studentRepo.Upsert(ctx, student); err != nil {
		return nil, fmt.Errorf("failed to save student: %w", err)
	}

	s.logger.Info().
		Str("student_id", id).
		Msg("Student profile saved")

	return student, nil
}
