package models

const (
	RoutingKeyHomeworkReviewed      = "homework.reviewed"
	RoutingKeyAttachmentsSuperseded = "attachments.superseded"
)

type HomeworkReviewedEvent struct {
	SubmissionID string `json:"submission_id"`
	StudentID    string `json:"student_id"`
	StudentName  string `json:"student_name"`
	StudentEmail string `json:"student_email"`
	LessonID     string `json:"lesson_id"`
	LessonTitle  string `json:"lesson_title"`
	CourseTitle  string `json:"course_title"`
	Decision     string `json:"decision"`
	Feedback     string `json:"feedback"`
	Timestamp    int64  `json:"timestamp"`
}

type AttachmentsSupersededEvent struct {
	SubmissionID string   `json:"submission_id"`
	URLs         []string `json:"urls"`
	Timestamp    int64    `json:"timestamp"`
}
