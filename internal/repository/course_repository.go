package repository

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog"

	"github.com/codeschool/lms-service/internal/models"
)

type CourseRepository interface {
	GetBySlug(ctx context.Context, slug string) (*models.Course, error)
	GetByID(ctx context.Context, id string) (*models.Course, error)
	GetModule(ctx context.Context, id string) (*models.Module, error)
	GetLesson(ctx context.Context, id string) (*models.Lesson, error)
	ListModules(ctx context.Context, courseID string) ([]models.Module, error)
	ListLessons(ctx context.Context, courseID string) ([]models.Lesson, error)
}

type courseRepository struct {
	*PostgresRepository
}

func NewCourseRepository(db *sql.DB, logger zerolog.Logger, retry RetryPolicy) CourseRepository {
	return &courseRepository{
		PostgresRepository: NewPostgresRepository(db, logger, retry),
	}
}

const lessonColumns = `
	l.id, l.module_id, l.title, l.order_index,
	COALESCE(l.video_url, ''), COALESCE(l.video_embed, ''), COALESCE(l.homework_description, ''),
	l.created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLesson(row rowScanner, lesson *models.Lesson) error {
	return row.Scan(
		&lesson.ID,
		&lesson.ModuleID,
		&lesson.Title,
		&lesson.OrderIndex,
		&lesson.VideoURL,
		&lesson.VideoEmbed,
		&lesson.HomeworkDescription,
		&lesson.CreatedAt,
	)
}

func (r *courseRepository) getCourse(ctx context.Context, op, where, arg string) (*models.Course, error) {
	query := `
		SELECT id, title, slug, created_at, updated_at
		FROM courses
		WHERE ` + where

	course := &models.Course{}
	err := r.read(ctx, op, func() error {
		return r.db.QueryRowContext(ctx, query, arg).Scan(
			&course.ID,
			&course.Title,
			&course.Slug,
			&course.CreatedAt,
			&course.UpdatedAt,
		)
	})

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return course, nil
}

func (r *courseRepository) GetBySlug(ctx context.Context, slug string) (*models.Course, error) {
	return r.getCourse(ctx, "course.get_by_slug", "slug = $1", slug)
}

func (r *courseRepository) GetByID(ctx context.Context, id string) (*models.Course, error) {
	return r.getCourse(ctx, "course.get_by_id", "id = $1", id)
}

func (r *courseRepository) GetModule(ctx context.Context, id string) (*models.Module, error) {
	query := `
		SELECT id, course_id, title, order_index, created_at
		FROM modules
		WHERE id = $1
	`

	module := &models.Module{}
	err := r.read(ctx, "course.get_module", func() error {
		return r.db.QueryRowContext(ctx, query, id).Scan(
			&module.ID,
			&module.CourseID,
			&module.Title,
			&module.OrderIndex,
			&module.CreatedAt,
		)
	})

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return module, nil
}

func (r *courseRepository) GetLesson(ctx context.Context, id string) (*models.Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons l WHERE l.id = $1`

	lesson := &models.Lesson{}
	err := r.read(ctx, "course.get_lesson", func() error {
		return scanLesson(r.db.QueryRowContext(ctx, query, id), lesson)
	})

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return lesson, nil
}

func (r *courseRepository) ListModules(ctx context.Context, courseID string) ([]models.Module, error) {
	query := `
		SELECT id, course_id, title, order_index, created_at
		FROM modules
		WHERE course_id = $1
		ORDER BY order_index, created_at, id
	`

	var modules []models.Module
	err := r.read(ctx, "course.list_modules", func() error {
		modules = nil

		rows, err := r.db.QueryContext(ctx, query, courseID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var module models.Module
			if err := rows.Scan(
				&module.ID,
				&module.CourseID,
				&module.Title,
				&module.OrderIndex,
				&module.CreatedAt,
			); err != nil {
				return err
			}
			modules = append(modules, module)
		}
		return rows.Err()
	})

	return modules, err
}

func (r *courseRepository) ListLessons(ctx context.Context, courseID string) ([]models.Lesson, error) {
	query := `
		SELECT ` + lessonColumns + `
		FROM lessons l
		JOIN modules m ON m.id = l.module_id
		WHERE m.course_id = $1
		ORDER BY m.order_index, m.created_at, m.id, l.order_index, l.created_at, l.id
	`

	var lessons []models.Lesson
	err := r.read(ctx, "course.list_lessons", func() error {
		lessons = nil

		rows, err := r.db.QueryContext(ctx, query, courseID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var lesson models.Lesson
			if err := scanLesson(rows, &lesson); err != nil {
				return err
			}
			lessons = append(lessons, lesson)
		}
		return rows.Err()
	})

	return lessons, err
}
