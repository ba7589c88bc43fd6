package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

type HomeworkStatus string

const (
	// HomeworkStatusNone is the state of a lesson with no submission row. It is never persisted.
	HomeworkStatusNone     HomeworkStatus = ""
	HomeworkStatusPending  HomeworkStatus = "pending"
	HomeworkStatusApproved HomeworkStatus = "approved"
	HomeworkStatusRejected HomeworkStatus = "rejected"
)

func (hs HomeworkStatus) String() string {
	if hs == HomeworkStatusNone {
		return "none"
	}
	return string(hs)
}

func IsValidReviewDecision(status string) bool {
	switch HomeworkStatus(status) {
	case HomeworkStatusApproved, HomeworkStatusRejected:
		return true
	default:
		return false
	}
}

type AttachmentType string

const (
	AttachmentTypeImage AttachmentType = "image"
	AttachmentTypeLink  AttachmentType = "link"
)

type Attachment struct {
	Type AttachmentType `json:"type" validate:"required,oneof=image link"`
	URL  string         `json:"url" validate:"required,url"`
	Name string         `json:"name,omitempty" validate:"max=255"`
}

// Attachments is stored as a JSONB column.
type Attachments []Attachment

func (a Attachments) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (a *Attachments) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*a = Attachments{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("attachments: unsupported scan source")
	}
	return json.Unmarshal(data, a)
}

type HomeworkSubmission struct {
	ID              string         `json:"id" db:"id"`
	StudentID       string         `json:"student_id" db:"student_id"`
	LessonID        string         `json:"lesson_id" db:"lesson_id"`
	AnswerText      string         `json:"answer_text" db:"answer_text"`
	Attachments     Attachments    `json:"attachments" db:"attachments"`
	Status          HomeworkStatus `json:"status" db:"status"`
	TeacherID       *string        `json:"teacher_id,omitempty" db:"teacher_id"`
	TeacherFeedback *string        `json:"teacher_feedback,omitempty" db:"teacher_feedback"`
	SubmittedAt     time.Time      `json:"submitted_at" db:"submitted_at"`
	ReviewedAt      *time.Time     `json:"reviewed_at,omitempty" db:"reviewed_at"`
	Version         int            `json:"version" db:"version"`
}

type HomeworkSubmissionWithDetails struct {
	HomeworkSubmission
	StudentName  string `json:"student_name" db:"student_name"`
	StudentEmail string `json:"student_email" db:"student_email"`
	LessonTitle  string `json:"lesson_title" db:"lesson_title"`
	CourseID     string `json:"course_id" db:"course_id"`
	CourseTitle  string `json:"course_title" db:"course_title"`
}
