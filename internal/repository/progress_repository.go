package repository

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/codeschool/lms-service/internal/models"
)

type ProgressRepository interface {
	ListByStudent(ctx context.Context, studentID string, lessonIDs []string) ([]models.LessonProgress, error)
	Upsert(ctx context.Context, progress *models.LessonProgress) error
}

type progressRepository struct {
	*PostgresRepository
}

func NewProgressRepository(db *sql.DB, logger zerolog.Logger, retry RetryPolicy) ProgressRepository {
	return &progressRepository{
		PostgresRepository: NewPostgresRepository(db, logger, retry),
	}
}

func (r *progressRepository) ListByStudent(ctx context.Context, studentID string, lessonIDs []string) ([]models.LessonProgress, error) {
	if len(lessonIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, student_id, lesson_id, is_completed, completed_at
		FROM lesson_progress
		WHERE student_id = $1 AND lesson_id = ANY($2)
	`

	var progress []models.LessonProgress
	err := r.read(ctx, "progress.list_by_student", func() error {
		progress = nil

		rows, err := r.db.QueryContext(ctx, query, studentID, pq.Array(lessonIDs))
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var p models.LessonProgress
			if err := rows.Scan(
				&p.ID,
				&p.StudentID,
				&p.LessonID,
				&p.IsCompleted,
				&p.CompletedAt,
			); err != nil {
				return err
			}
			progress = append(progress, p)
		}
		return rows.Err()
	})

	return progress, err
}

// Upsert keeps the first completion time when a lesson is marked completed again.
func (r *progressRepository) Upsert(ctx context.Context, progress *models.LessonProgress) error {
	query := `
		INSERT INTO lesson_progress (id, student_id, lesson_id, is_completed, completed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (student_id, lesson_id) DO UPDATE
		SET is_completed = EXCLUDED.is_completed,
			completed_at = COALESCE(lesson_progress.completed_at, EXCLUDED.completed_at)
		RETURNING id, completed_at
	`

	return r.db.QueryRowContext(ctx, query,
		progress.ID,
		progress.StudentID,
		progress.LessonID,
		progress.IsCompleted,
		progress.CompletedAt,
	).Scan(&progress.ID, &progress.CompletedAt)
}
