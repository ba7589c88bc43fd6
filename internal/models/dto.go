package models

// Data Transfer Objects

type SubmitHomeworkRequest struct {
	AnswerText  string       `json:"answer_text" validate:"required,max=20000"`
	Attachments []Attachment `json:"attachments" validate:"max=20,dive"`
}

type ReviewHomeworkRequest struct {
	Status   string `json:"status" validate:"required,oneof=approved rejected"`
	Feedback string `json:"feedback" validate:"max=5000"`
	// Version is the submission version the reviewer looked at. Zero skips the check.
	Version int `json:"version" validate:"omitempty,min=1"`
}

type UpsertStudentRequest struct {
	Name  string `json:"name" validate:"required,min=2,max=255"`
	Email string `json:"email" validate:"required,email,max=255"`
}

type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
	Percent   int `json:"percent"`
}

type LessonStateResponse struct {
	Lesson         Lesson `json:"lesson"`
	IsCompleted    bool   `json:"is_completed"`
	HasHomework    bool   `json:"has_homework"`
	HomeworkStatus string `json:"homework_status"`
	IsUnlocked     bool   `json:"is_unlocked"`
}

type ModuleOverview struct {
	Module  Module                `json:"module"`
	Lessons []LessonStateResponse `json:"lessons"`
}

type CourseOverview struct {
	Course     Course            `json:"course"`
	Enrollment StudentEnrollment `json:"enrollment"`
	Modules    []ModuleOverview  `json:"modules"`
	Progress   Progress          `json:"progress"`
}

type NavigationResponse struct {
	Previous *LessonRef `json:"previous"`
	Next     *LessonRef `json:"next"`
	// Blocked is set when a following lesson exists but is still locked.
	Blocked bool `json:"blocked"`
}

type LessonView struct {
	Course     Course              `json:"course"`
	Module     Module              `json:"module"`
	State      LessonStateResponse `json:"state"`
	Navigation NavigationResponse  `json:"navigation"`
	Submission *HomeworkSubmission `json:"submission,omitempty"`
}

type EnrollmentProgress struct {
	Course     Course            `json:"course"`
	Enrollment StudentEnrollment `json:"enrollment"`
	Progress   Progress          `json:"progress"`
}

type HomeworkStateResponse struct {
	Status     string              `json:"status"`
	Submission *HomeworkSubmission `json:"submission"`
}

type PendingReviewsResponse struct {
	Submissions []HomeworkSubmissionWithDetails `json:"submissions"`
	Total       int                             `json:"total"`
	Page        int                             `json:"page"`
	Limit       int                             `json:"limit"`
}
