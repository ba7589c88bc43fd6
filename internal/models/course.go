package models

import (
	"strings"
	"time"
)

type Course struct {
	ID        string    `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Slug      string    `json:"slug" db:"slug"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Module struct {
	ID         string    `json:"id" db:"id"`
	CourseID   string    `json:"course_id" db:"course_id"`
	Title      string    `json:"title" db:"title"`
	OrderIndex int       `json:"order_index" db:"order_index"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

type Lesson struct {
	ID                  string    `json:"id" db:"id"`
	ModuleID            string    `json:"module_id" db:"module_id"`
	Title               string    `json:"title" db:"title"`
	OrderIndex          int       `json:"order_index" db:"order_index"`
	VideoURL            string    `json:"video_url,omitempty" db:"video_url"`
	VideoEmbed          string    `json:"video_embed,omitempty" db:"video_embed"`
	HomeworkDescription string    `json:"homework_description,omitempty" db:"homework_description"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
}

// HasHomework reports whether the lesson gates the next one on homework approval.
// A blank or whitespace-only description counts as no homework.
func (l Lesson) HasHomework() bool {
	return strings.TrimSpace(l.HomeworkDescription) != ""
}

// LessonRef is the minimal lesson identity used for navigation links.
type LessonRef struct {
	ID       string `json:"id"`
	ModuleID string `json:"module_id"`
	Title    string `json:"title"`
}

func (l Lesson) Ref() *LessonRef {
	return &LessonRef{
		ID:       l.ID,
		ModuleID: l.ModuleID,
		Title:    l.Title,
	}
}
