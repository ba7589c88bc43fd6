package homework

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeschool/lms-service/internal/models"
)

var now = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func rejected() *models.HomeworkSubmission {
	teacher := "t1"
	feedback := "use a loop"
	reviewed := now.Add(-time.Hour)
	return &models.HomeworkSubmission{
		ID:         "h1",
		StudentID:  "s1",
		LessonID:   "l2",
		AnswerText: "first try",
		Attachments: models.Attachments{
			{Type: models.AttachmentTypeImage, URL: "https://cdn.example.com/homework/s1/a.png"},
			{Type: models.AttachmentTypeImage, URL: "https://cdn.example.com/homework/s1/b.png"},
			{Type: models.AttachmentTypeLink, URL: "https://github.com/s1/repo"},
		},
		Status:          models.HomeworkStatusRejected,
		TeacherID:       &teacher,
		TeacherFeedback: &feedback,
		SubmittedAt:     now.Add(-2 * time.Hour),
		ReviewedAt:      &reviewed,
		Version:         2,
	}
}

func pending() *models.HomeworkSubmission {
	return &models.HomeworkSubmission{
		ID:          "h1",
		StudentID:   "s1",
		LessonID:    "l2",
		AnswerText:  "answer",
		Status:      models.HomeworkStatusPending,
		SubmittedAt: now.Add(-time.Hour),
		Version:     1,
	}
}

func TestApplySubmitFirst(t *testing.T) {
	out, err := Apply(nil, Submit{StudentID: "s1", LessonID: "l2", Answer: "  my answer  "}, now)
	require.NoError(t, err)

	assert.True(t, out.Created)
	assert.Equal(t, models.HomeworkStatusNone, out.From)
	assert.NotEmpty(t, out.Submission.ID)
	assert.Equal(t, "  my answer  ", out.Submission.AnswerText, "answer is stored as written")
	assert.Equal(t, models.HomeworkStatusPending, out.Submission.Status)
	assert.Equal(t, now, out.Submission.SubmittedAt)
	assert.Equal(t, 1, out.Submission.Version)
	assert.Nil(t, out.Notify)
	assert.Nil(t, out.Cleanup)
}

func TestApplyResubmitAfterRejection(t *testing.T) {
	cur := rejected()

	out, err := Apply(cur, Submit{
		StudentID: "s1",
		LessonID:  "l2",
		Answer:    "second try",
		Attachments: []models.Attachment{
			{Type: models.AttachmentTypeImage, URL: "https://cdn.example.com/homework/s1/b.png"},
			{Type: models.AttachmentTypeImage, URL: "https://cdn.example.com/homework/s1/c.png"},
		},
	}, now)
	require.NoError(t, err)

	sub := out.Submission
	assert.False(t, out.Created)
	assert.Equal(t, models.HomeworkStatusRejected, out.From)
	assert.Equal(t, cur.ID, sub.ID, "resubmission must keep the same row")
	assert.Equal(t, "second try", sub.AnswerText)
	assert.Equal(t, models.HomeworkStatusPending, sub.Status)
	assert.Nil(t, sub.TeacherFeedback)
	assert.Nil(t, sub.TeacherID)
	assert.Nil(t, sub.ReviewedAt)
	assert.Equal(t, now, sub.SubmittedAt)
	assert.Equal(t, 3, sub.Version)
	assert.Len(t, sub.Attachments, 2)

	require.NotNil(t, out.Cleanup)
	assert.Equal(t, []string{"https://cdn.example.com/homework/s1/a.png"}, out.Cleanup.URLs)

	// the input row is untouched
	assert.Equal(t, models.HomeworkStatusRejected, cur.Status)
	assert.NotNil(t, cur.TeacherFeedback)
}

func TestApplyKeepsCodeIndentation(t *testing.T) {
	answer := "\tfor i := range xs {\n\t\tsum += xs[i]\n\t}\n"

	out, err := Apply(nil, Submit{StudentID: "s1", LessonID: "l2", Answer: answer}, now)
	require.NoError(t, err)
	assert.Equal(t, answer, out.Submission.AnswerText)

	out, err = Apply(rejected(), Submit{Answer: answer}, now)
	require.NoError(t, err)
	assert.Equal(t, answer, out.Submission.AnswerText)
}

func TestApplyResubmitKeepsAllFiles(t *testing.T) {
	cur := rejected()

	out, err := Apply(cur, Submit{Answer: "again", Attachments: cur.Attachments}, now)
	require.NoError(t, err)
	assert.Nil(t, out.Cleanup)
}

func TestApplyReview(t *testing.T) {
	tests := []struct {
		name     string
		decision models.HomeworkStatus
	}{
		{name: "approve", decision: models.HomeworkStatusApproved},
		{name: "reject", decision: models.HomeworkStatusRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Apply(pending(), Review{TeacherID: "t1", Decision: tt.decision, Feedback: " nice "}, now)
			require.NoError(t, err)

			sub := out.Submission
			assert.Equal(t, tt.decision, sub.Status)
			require.NotNil(t, sub.TeacherID)
			assert.Equal(t, "t1", *sub.TeacherID)
			require.NotNil(t, sub.TeacherFeedback)
			assert.Equal(t, "nice", *sub.TeacherFeedback)
			require.NotNil(t, sub.ReviewedAt)
			assert.Equal(t, now, *sub.ReviewedAt)
			assert.Equal(t, 2, sub.Version)

			require.NotNil(t, out.Notify)
			assert.Equal(t, tt.decision, out.Notify.Decision)
			assert.Equal(t, "s1", out.Notify.StudentID)
			assert.Equal(t, "h1", out.Notify.SubmissionID)
		})
	}
}

func TestApplyReviewEmptyFeedback(t *testing.T) {
	out, err := Apply(pending(), Review{TeacherID: "t1", Decision: models.HomeworkStatusApproved}, now)
	require.NoError(t, err)
	require.NotNil(t, out.Submission.TeacherFeedback)
	assert.Equal(t, "", *out.Submission.TeacherFeedback)
}

func TestApplyRejectsInvalidTransitions(t *testing.T) {
	approved := pending()
	approved.Status = models.HomeworkStatusApproved

	tests := []struct {
		name    string
		current *models.HomeworkSubmission
		tr      Transition
		wantErr error
	}{
		{name: "empty answer", tr: Submit{Answer: "   "}, wantErr: ErrEmptyAnswer},
		{name: "bad attachment type", tr: Submit{Answer: "a", Attachments: []models.Attachment{{Type: "video", URL: "x"}}}, wantErr: ErrInvalidAttachment},
		{name: "attachment without url", tr: Submit{Answer: "a", Attachments: []models.Attachment{{Type: models.AttachmentTypeLink}}}, wantErr: ErrInvalidAttachment},
		{name: "submit while pending", current: pending(), tr: Submit{Answer: "a"}, wantErr: ErrInvalidTransition},
		{name: "submit after approval", current: approved, tr: Submit{Answer: "a"}, wantErr: ErrInvalidTransition},
		{name: "review nothing", tr: Review{TeacherID: "t1", Decision: models.HomeworkStatusApproved}, wantErr: ErrInvalidTransition},
		{name: "review twice", current: approved, tr: Review{TeacherID: "t1", Decision: models.HomeworkStatusRejected}, wantErr: ErrInvalidTransition},
		{name: "review rejected", current: rejected(), tr: Review{TeacherID: "t1", Decision: models.HomeworkStatusApproved}, wantErr: ErrInvalidTransition},
		{name: "review back to pending", current: pending(), tr: Review{TeacherID: "t1", Decision: models.HomeworkStatusPending}, wantErr: ErrInvalidDecision},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Apply(tt.current, tt.tr, now)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Apply() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestState(t *testing.T) {
	assert.Equal(t, models.HomeworkStatusNone, State(nil))
	assert.Equal(t, models.HomeworkStatusPending, State(pending()))
	assert.Equal(t, "none", State(nil).String())
}
