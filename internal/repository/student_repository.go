package repository

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog"

	"github.com/codeschool/lms-service/internal/models"
)

type StudentRepository interface {
	GetByID(ctx context.Context, id string) (*models.Student, error)
	Upsert(ctx context.Context, student *models.Student) error
}

type studentRepository struct {
	*PostgresRepository
}

func NewStudentRepository(db *sql.DB, logger zerolog.Logger, retry RetryPolicy) StudentRepository {
	return &studentRepository{
		PostgresRepository: NewPostgresRepository(db, logger, retry),
	}
}

func (r *studentRepository) GetByID(ctx context.Context, id string) (*models.Student, error) {
	query := `
		SELECT id, name, email, created_at, updated_at
		FROM students
		WHERE id = $1
	`

	student := &models.Student{}
	err := r.read(ctx, "student.get_by_id", func() error {
		return r.db.QueryRowContext(ctx, query, id).Scan(
			&student.ID,
			&student.Name,
			&student.Email,
			&student.CreatedAt,
			&student.UpdatedAt,
		)
	})

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return student, nil
}

func (r *studentRepository) Upsert(ctx context.Context, student *models.Student) error {
	query := `
		INSERT INTO students (id, name, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, email = EXCLUDED.email, updated_at = EXCLUDED.updated_at
		RETURNING created_at
	`

	return r.db.QueryRowContext(ctx, query,
		student.ID,
		student.Name,
		student.Email,
		student.CreatedAt,
		student.UpdatedAt,
	).Scan(&student.CreatedAt)
}
