package models

import (
	"time"
)

type LessonProgress struct {
	ID          string     `json:"id" db:"id"`
	StudentID   string     `json:"student_id" db:"student_id"`
	LessonID    string     `json:"lesson_id" db:"lesson_id"`
	IsCompleted bool       `json:"is_completed" db:"is_completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

type EnrollmentStatus string

const (
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
)

func (es EnrollmentStatus) String() string {
	return string(es)
}

type StudentEnrollment struct {
	ID          string     `json:"id" db:"id"`
	StudentID   string     `json:"student_id" db:"student_id"`
	CourseID    string     `json:"course_id" db:"course_id"`
	Status      string     `json:"status" db:"status"` // active, completed
	EnrolledAt  time.Time  `json:"enrolled_at" db:"enrolled_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

type Student struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
