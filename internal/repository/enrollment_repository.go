package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"github.com/codeschool/lms-service/internal/models"
)

type EnrollmentRepository interface {
	Get(ctx context.Context, studentID, courseID string) (*models.StudentEnrollment, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.StudentEnrollment, error)
	MarkCompleted(ctx context.Context, id string, completedAt time.Time) error
}

type enrollmentRepository struct {
	*PostgresRepository
}

func NewEnrollmentRepository(db *sql.DB, logger zerolog.Logger, retry RetryPolicy) EnrollmentRepository {
	return &enrollmentRepository{
		PostgresRepository: NewPostgresRepository(db, logger, retry),
	}
}

func (r *enrollmentRepository) Get(ctx context.Context, studentID, courseID string) (*models.StudentEnrollment, error) {
	query := `
		SELECT id, student_id, course_id, status, enrolled_at, completed_at
		FROM student_enrollments
		WHERE student_id = $1 AND course_id = $2
	`

	enrollment := &models.StudentEnrollment{}
	err := r.read(ctx, "enrollment.get", func() error {
		return r.db.QueryRowContext(ctx, query, studentID, courseID).Scan(
			&enrollment.ID,
			&enrollment.StudentID,
			&enrollment.CourseID,
			&enrollment.Status,
			&enrollment.EnrolledAt,
			&enrollment.CompletedAt,
		)
	})

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return enrollment, nil
}

func (r *enrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.StudentEnrollment, error) {
	query := `
		SELECT id, student_id, course_id, status, enrolled_at, completed_at
		FROM student_enrollments
		WHERE student_id = $1
		ORDER BY enrolled_at DESC
	`

	var enrollments []models.StudentEnrollment
	err := r.read(ctx, "enrollment.list_by_student", func() error {
		enrollments = nil

		rows, err := r.db.QueryContext(ctx, query, studentID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var e models.StudentEnrollment
			if err := rows.Scan(
				&e.ID,
				&e.StudentID,
				&e.CourseID,
				&e.Status,
				&e.EnrolledAt,
				&e.CompletedAt,
			); err != nil {
				return err
			}
			enrollments = append(enrollments, e)
		}
		return rows.Err()
	})

	return enrollments, err
}

// MarkCompleted is a no-op for enrollments that are already completed.
func (r *enrollmentRepository) MarkCompleted(ctx context.Context, id string, completedAt time.Time) error {
	query := `
		UPDATE student_enrollments
		SET status = $1, completed_at = $2
		WHERE id = $3 AND status <> $1
	`

	_, err := r.db.ExecContext(ctx, query, models.EnrollmentStatusCompleted.String(), completedAt, id)
	return err
}
