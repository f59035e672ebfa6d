package broker_errors

import (
	"errors"
	"time"
)

// Common errors
var (
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidInput       = errors.New("invalid input")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrAlreadyExists      = errors.New("already exists")
)

// Deal errors
var (
	ErrTaskNotActive       = errors.New("task is not active")
	ErrDuplicateResponse   = errors.New("fulfiller already responded to this task")
	ErrResponseLimit       = errors.New("response limit reached")
	ErrAmountMismatch      = errors.New("payment amount does not match task price")
	ErrInteractionNotIssue = errors.New("interaction is not in ISSUE status")
	ErrFeedbackClosed      = errors.New("interaction no longer accepts feedback")
	ErrNotParticipant      = errors.New("user is not a party of this interaction")
	ErrUnknownEventType    = errors.New("unknown event type")
	ErrProfileUnconfirmed  = errors.New("fulfiller profile is not confirmed")
)

// NowPtr returns a pointer to current time
func NowPtr() *time.Time {
	now := time.Now()
	return &now
}

// TimePtr returns a pointer to t
func TimePtr(t time.Time) *time.Time {
	return &t
}
