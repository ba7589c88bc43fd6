package service

import (
	"errors"

	"github.com/codeschool/lms-service/internal/service/homework"
)

// Typed errors mapped to HTTP statuses in the delivery layer.
var (
	// Lookup and access.
	ErrNotFound     = errors.New("not found")
	ErrNotEnrolled  = errors.New("student is not enrolled in the course")
	ErrLessonLocked = errors.New("lesson is locked")

	// Homework.
	ErrNoHomework        = errors.New("lesson has no homework")
	ErrReviewConflict    = errors.New("submission was changed by another review")
	ErrInvalidTransition = homework.ErrInvalidTransition
	ErrEmptyAnswer       = homework.ErrEmptyAnswer
	ErrInvalidAttachment = homework.ErrInvalidAttachment
	ErrInvalidDecision   = homework.ErrInvalidDecision
)
