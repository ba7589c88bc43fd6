package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/codeschool/lms-service/internal/models"
)

// ErrVersionConflict is returned when a write loses an optimistic version check.
var ErrVersionConflict = errors.New("submission version conflict")

type HomeworkRepository interface {
	GetDetails(ctx context.Context, id string) (*models.HomeworkSubmissionWithDetails, error)
	ListByStudent(ctx context.Context, studentID string, lessonIDs []string) ([]models.HomeworkSubmission, error)
	ListPending(ctx context.Context, limit, offset int) ([]models.HomeworkSubmissionWithDetails, int, error)
	// Upsert writes the single row for (student, lesson). expectedVersion is 0
	// when the row must not exist yet.
	Upsert(ctx context.Context, sub *models.HomeworkSubmission, expectedVersion int) error
	UpdateReview(ctx context.Context, sub *models.HomeworkSubmission, expectedVersion int) error
}

type homeworkRepository struct {
	*PostgresRepository
}

func NewHomeworkRepository(db *sql.DB, logger zerolog.Logger, retry RetryPolicy) HomeworkRepository {
	return &homeworkRepository{
		PostgresRepository: NewPostgresRepository(db, logger, retry),
	}
}

const submissionColumns = `
	h.id, h.student_id, h.lesson_id, h.answer_text, h.attachments, h.status,
	h.teacher_id, h.teacher_feedback, h.submitted_at, h.reviewed_at, h.version`

func scanSubmission(row rowScanner, sub *models.HomeworkSubmission, extra ...interface{}) error {
	dest := []interface{}{
		&sub.ID,
		&sub.StudentID,
		&sub.LessonID,
		&sub.AnswerText,
		&sub.Attachments,
		&sub.Status,
		&sub.TeacherID,
		&sub.TeacherFeedback,
		&sub.SubmittedAt,
		&sub.ReviewedAt,
		&sub.Version,
	}
	return row.Scan(append(dest, extra...)...)
}

const detailsFrom = `
	FROM homework_submissions h
	JOIN lessons l ON l.id = h.lesson_id
	JOIN modules m ON m.id = l.module_id
	JOIN courses c ON c.id = m.course_id
	LEFT JOIN students s ON s.id = h.student_id`

const detailsColumns = submissionColumns + `,
	COALESCE(s.name, ''), COALESCE(s.email, ''), l.title, c.id, c.title`

func scanDetails(row rowScanner, d *models.HomeworkSubmissionWithDetails) error {
	return scanSubmission(row, &d.HomeworkSubmission,
		&d.StudentName,
		&d.StudentEmail,
		&d.LessonTitle,
		&d.CourseID,
		&d.CourseTitle,
	)
}

func (r *homeworkRepository) GetDetails(ctx context.Context, id string) (*models.HomeworkSubmissionWithDetails, error) {
	query := `SELECT ` + detailsColumns + detailsFrom + ` WHERE h.id = $1`

	details := &models.HomeworkSubmissionWithDetails{}
	err := r.read(ctx, "homework.get_details", func() error {
		return scanDetails(r.db.QueryRowContext(ctx, query, id), details)
	})

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return details, nil
}

func (r *homeworkRepository) ListByStudent(ctx context.Context, studentID string, lessonIDs []string) ([]models.HomeworkSubmission, error) {
	if len(lessonIDs) == 0 {
		return nil, nil
	}

	query := `SELECT ` + submissionColumns + ` FROM homework_submissions h WHERE h.student_id = $1 AND h.lesson_id = ANY($2)`

	var subs []models.HomeworkSubmission
	err := r.read(ctx, "homework.list_by_student", func() error {
		subs = nil

		rows, err := r.db.QueryContext(ctx, query, studentID, pq.Array(lessonIDs))
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var sub models.HomeworkSubmission
			if err := scanSubmission(rows, &sub); err != nil {
				return err
			}
			subs = append(subs, sub)
		}
		return rows.Err()
	})

	return subs, err
}

func (r *homeworkRepository) ListPending(ctx context.Context, limit, offset int) ([]models.HomeworkSubmissionWithDetails, int, error) {
	countQuery := `SELECT COUNT(*) FROM homework_submissions WHERE status = $1`
	query := `SELECT ` + detailsColumns + detailsFrom + `
		WHERE h.status = $1
		ORDER BY h.submitted_at ASC
		LIMIT $2 OFFSET $3
	`
	pending := models.HomeworkStatusPending.String()

	var total int
	err := r.read(ctx, "homework.count_pending", func() error {
		return r.db.QueryRowContext(ctx, countQuery, pending).Scan(&total)
	})
	if err != nil {
		return nil, 0, err
	}

	var subs []models.HomeworkSubmissionWithDetails
	err = r.read(ctx, "homework.list_pending", func() error {
		subs = nil

		rows, err := r.db.QueryContext(ctx, query, pending, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var d models.HomeworkSubmissionWithDetails
			if err := scanDetails(rows, &d); err != nil {
				return err
			}
			subs = append(subs, d)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}

	return subs, total, nil
}

func (r *homeworkRepository) Upsert(ctx context.Context, sub *models.HomeworkSubmission, expectedVersion int) error {
	query := `
		INSERT INTO homework_submissions (
			id, student_id, lesson_id, answer_text, attachments, status,
			teacher_id, teacher_feedback, submitted_at, reviewed_at, version
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (student_id, lesson_id) DO UPDATE
		SET answer_text = EXCLUDED.answer_text,
			attachments = EXCLUDED.attachments,
			status = EXCLUDED.status,
			teacher_id = EXCLUDED.teacher_id,
			teacher_feedback = EXCLUDED.teacher_feedback,
			submitted_at = EXCLUDED.submitted_at,
			reviewed_at = EXCLUDED.reviewed_at,
			version = EXCLUDED.version
		WHERE homework_submissions.version = $12
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		sub.ID,
		sub.StudentID,
		sub.LessonID,
		sub.AnswerText,
		sub.Attachments,
		sub.Status,
		sub.TeacherID,
		sub.TeacherFeedback,
		sub.SubmittedAt,
		sub.ReviewedAt,
		sub.Version,
		expectedVersion,
	).Scan(&sub.ID)

	if err == sql.ErrNoRows {
		return ErrVersionConflict
	}
	return err
}

func (r *homeworkRepository) UpdateReview(ctx context.Context, sub *models.HomeworkSubmission, expectedVersion int) error {
	query := `
		UPDATE homework_submissions
		SET status = $1, teacher_id = $2, teacher_feedback = $3, reviewed_at = $4, version = $5
		WHERE id = $6 AND version = $7
	`

	result, err := r.db.ExecContext(ctx, query,
		sub.Status,
		sub.TeacherID,
		sub.TeacherFeedback,
		sub.ReviewedAt,
		sub.Version,
		sub.ID,
		expectedVersion,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrVersionConflict
	}

	return nil
}
