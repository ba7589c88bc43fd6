package integration

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	htmltmpl "html/template"
	"net/http"
	"net/mail"
	"strings"
	texttmpl "text/template"

	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/codeschool/lms-service/internal/models"
)

var (
	// ErrInvalidRecipient and ErrEmailRejected will not succeed on retry.
	ErrInvalidRecipient = errors.New("invalid email recipient")
	ErrEmailRejected    = errors.New("email rejected by provider")
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

//go:embed templates
var templateFS embed.FS

var (
	reviewedText = texttmpl.Must(texttmpl.ParseFS(templateFS, "templates/homework_reviewed.txt"))
	reviewedHTML = htmltmpl.Must(htmltmpl.ParseFS(templateFS, "templates/homework_reviewed.gohtml"))
)

type EmailMessage struct {
	To          mail.Address
	Subject     string
	TextContent string
	HTMLContent string
}

type EmailSender interface {
	Send(ctx context.Context, msg *EmailMessage) error
}

type reviewedData struct {
	StudentName string
	LessonTitle string
	CourseTitle string
	Decision    string
	Feedback    string
	Approved    bool
	LessonURL   string
}

// RenderHomeworkReviewed builds the notification sent to a student after a review.
// frontendBaseURL may be empty, in which case the message carries no link.
func RenderHomeworkReviewed(event *models.HomeworkReviewedEvent, frontendBaseURL string) (*EmailMessage, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(event.StudentEmail))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRecipient, event.StudentEmail)
	}
	addr.Name = event.StudentName

	data := reviewedData{
		StudentName: event.StudentName,
		LessonTitle: event.LessonTitle,
		CourseTitle: event.CourseTitle,
		Decision:    event.Decision,
		Feedback:    event.Feedback,
		Approved:    event.Decision == models.HomeworkStatusApproved.String(),
	}
	if data.StudentName == "" {
		data.StudentName = "there"
	}
	if base := strings.TrimRight(frontendBaseURL, "/"); base != "" {
		data.LessonURL = base + "/lessons/" + event.LessonID
	}

	var text, html bytes.Buffer
	if err := reviewedText.Execute(&text, data); err != nil {
		return nil, fmt.Errorf("failed to render text email: %w", err)
	}
	if err := reviewedHTML.Execute(&html, data); err != nil {
		return nil, fmt.Errorf("failed to render html email: %w", err)
	}

	return &EmailMessage{
		To:          *addr,
		Subject:     fmt.Sprintf("Homework %s: %s", event.Decision, event.LessonTitle),
		TextContent: text.String(),
		HTMLContent: html.String(),
	}, nil
}

type sendgridSender struct {
	key        string
	host       string
	from       *sgmail.Email
	subjPrefix string
	logger     zerolog.Logger
}

func NewSendgridSender(apiKey, fromName, fromAddress, subjectPrefix string, logger zerolog.Logger) EmailSender {
	return &sendgridSender{
		key:        apiKey,
		host:       sendgridHost,
		from:       sgmail.NewEmail(fromName, fromAddress),
		subjPrefix: subjectPrefix,
		logger:     logger,
	}
}

func (s *sendgridSender) prepare(msg *EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = s.subjPrefix + msg.Subject
	p.AddTos(sgmail.NewEmail(msg.To.Name, msg.To.Address))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(
		sgmail.NewContent("text/plain", msg.TextContent),
		sgmail.NewContent("text/html", msg.HTMLContent),
	)
	return m
}

func (s *sendgridSender) Send(ctx context.Context, msg *EmailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	req := sendgrid.GetRequest(s.key, sendgridEndpoint, s.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(msg))

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	switch {
	case res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("sendgrid returned status %d: %s", res.StatusCode, res.Body)
	case res.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("%w: status %d: %s", ErrEmailRejected, res.StatusCode, res.Body)
	}

	s.logger.Info().
		Str("to", msg.To.Address).
		Str("subject", msg.Subject).
		Int("status", res.StatusCode).
		Msg("Email sent")

	return nil
}

type logSender struct {
	logger zerolog.Logger
}

// NewLogSender returns a sender that writes messages to the log. It is used
// when no SendGrid API key is configured.
func NewLogSender(logger zerolog.Logger) EmailSender {
	return &logSender{logger: logger}
}

func (s *logSender) Send(_ context.Context, msg *EmailMessage) error {
	s.logger.Info().
		Str("to", msg.To.String()).
		Str("subject", msg.Subject).
		Str("body", msg.TextContent).
		Msg("Email (not sent, no provider configured)")
	return nil
}
