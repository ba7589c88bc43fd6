// Package homework models the lifecycle of a single homework submission:
//
//	none -> pending            student submits
//	pending -> approved        teacher approves
//	pending -> rejected        teacher rejects
//	rejected -> pending        student resubmits (row overwritten in place)
//
// Apply is pure. Side effects are returned as values and must only be carried
// out after the resulting row has been persisted.
package homework

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/codeschool/lms-service/internal/models"
	"github.com/google/uuid"
)

var (
	ErrInvalidTransition = errors.New("invalid homework transition")
	ErrEmptyAnswer       = errors.New("homework answer is empty")
	ErrInvalidAttachment = errors.New("invalid homework attachment")
	ErrInvalidDecision   = errors.New("invalid review decision")
)

// State returns the machine state of a possibly absent submission row.
func State(sub *models.HomeworkSubmission) models.HomeworkStatus {
	if sub == nil {
		return models.HomeworkStatusNone
	}
	return sub.Status
}

// Transition is implemented by Submit and Review.
type Transition interface {
	name() string
}

// Submit is a student's first submission or a resubmission after rejection.
type Submit struct {
	StudentID   string
	LessonID    string
	Answer      string
	Attachments []models.Attachment
}

// Review is a teacher's decision on a pending submission.
type Review struct {
	TeacherID string
	Decision  models.HomeworkStatus
	Feedback  string
}

func (Submit) name() string { return "submit" }
func (Review) name() string { return "review" }

// NotifyStudent asks for the student to be told about a review decision.
type NotifyStudent struct {
	SubmissionID string
	StudentID    string
	LessonID     string
	Decision     models.HomeworkStatus
	Feedback     string
}

// DeleteAttachments asks for superseded attachment files to be removed from storage.
type DeleteAttachments struct {
	SubmissionID string
	URLs         []string
}

type Outcome struct {
	Submission models.HomeworkSubmission
	From       models.HomeworkStatus
	// Created is true when the row does not exist yet and must be inserted.
	// Otherwise the row with Submission.ID is updated in place.
	Created bool
	Notify  *NotifyStudent
	Cleanup *DeleteAttachments
}

// Apply computes the next submission row for a transition on current, which is
// nil when the student never submitted for the lesson.
func Apply(current *models.HomeworkSubmission, tr Transition, now time.Time) (Outcome, error) {
	from := State(current)

	switch t := tr.(type) {
	case Submit:
		return applySubmit(current, from, t, now)
	case Review:
		return applyReview(current, from, t, now)
	default:
		return Outcome{}, fmt.Errorf("%w: unknown transition", ErrInvalidTransition)
	}
}

func applySubmit(current *models.HomeworkSubmission, from models.HomeworkStatus, t Submit, now time.Time) (Outcome, error) {
	if strings.TrimSpace(t.Answer) == "" {
		return Outcome{}, ErrEmptyAnswer
	}
	if err := validateAttachments(t.Attachments); err != nil {
		return Outcome{}, err
	}

	attachments := make(models.Attachments, len(t.Attachments))
	copy(attachments, t.Attachments)

	switch from {
	case models.HomeworkStatusNone:
		return Outcome{
			Submission: models.HomeworkSubmission{
				ID:          uuid.New().String(),
				StudentID:   t.StudentID,
				LessonID:    t.LessonID,
				AnswerText:  t.Answer,
				Attachments: attachments,
				Status:      models.HomeworkStatusPending,
				SubmittedAt: now,
				Version:     1,
			},
			From:    from,
			Created: true,
		}, nil

	case models.HomeworkStatusRejected:
		next := *current
		next.AnswerText = t.Answer
		next.Attachments = attachments
		next.Status = models.HomeworkStatusPending
		next.TeacherID = nil
		next.TeacherFeedback = nil
		next.ReviewedAt = nil
		next.SubmittedAt = now
		next.Version = current.Version + 1

		out := Outcome{Submission: next, From: from}
		if urls := superseded(current.Attachments, attachments); len(urls) > 0 {
			out.Cleanup = &DeleteAttachments{SubmissionID: current.ID, URLs: urls}
		}
		return out, nil

	default:
		return Outcome{}, fmt.Errorf("%w: cannot submit homework that is %s", ErrInvalidTransition, from)
	}
}

func applyReview(current *models.HomeworkSubmission, from models.HomeworkStatus, t Review, now time.Time) (Outcome, error) {
	if !models.IsValidReviewDecision(string(t.Decision)) {
		return Outcome{}, ErrInvalidDecision
	}
	if from != models.HomeworkStatusPending {
		return Outcome{}, fmt.Errorf("%w: cannot review homework that is %s", ErrInvalidTransition, from)
	}

	teacherID := t.TeacherID
	feedback := strings.TrimSpace(t.Feedback)
	reviewedAt := now

	next := *current
	next.Status = t.Decision
	next.TeacherID = &teacherID
	next.TeacherFeedback = &feedback
	next.ReviewedAt = &reviewedAt
	next.Version = current.Version + 1

	return Outcome{
		Submission: next,
		From:       from,
		Notify: &NotifyStudent{
			SubmissionID: next.ID,
			StudentID:    next.StudentID,
			LessonID:     next.LessonID,
			Decision:     t.Decision,
			Feedback:     feedback,
		},
	}, nil
}

func validateAttachments(attachments []models.Attachment) error {
	for i, a := range attachments {
		if a.Type != models.AttachmentTypeImage && a.Type != models.AttachmentTypeLink {
			return fmt.Errorf("%w: #%d has type %q", ErrInvalidAttachment, i, a.Type)
		}
		if strings.TrimSpace(a.URL) == "" {
			return fmt.Errorf("%w: #%d has no url", ErrInvalidAttachment, i)
		}
	}
	return nil
}

// superseded lists uploaded image URLs present in old but not in next. Links
// point at external resources and are never ours to delete.
func superseded(old, next models.Attachments) []string {
	keep := make(map[string]struct{}, len(next))
	for _, a := range next {
		keep[a.URL] = struct{}{}
	}

	var urls []string
	for _, a := range old {
		if a.Type != models.AttachmentTypeImage {
			continue
		}
		if _, ok := keep[a.URL]; ok {
			continue
		}
		urls = append(urls, a.URL)
	}
	return urls
}
