package task

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the moderation and fulfilment state of a task
type Status string

const (
	StatusDraft         Status = "DRAFT"
	StatusPendingReview Status = "PENDING_REVIEW"
	StatusActive        Status = "ACTIVE"
	StatusClosed        Status = "CLOSED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPendingReview, StatusActive, StatusClosed:
		return true
	}
	return false
}

// CanTransitionTo reports whether a task may move from s to next.
// Every edge is forward only; CLOSED is final.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusDraft:
		return next == StatusPendingReview
	case StatusPendingReview:
		return next == StatusActive
	case StatusActive:
		return next == StatusClosed
	}
	return false
}

// Task represents the tasks table
type Task struct {
	ID          uuid.UUID
	OwnerID     uuid.UUID
	Title       string
	Description string
	Price       decimal.Decimal
	SlotsNeeded int
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// Response represents the task_responses table. A fulfiller responds to a
// task at most once.
type Response struct {
	ID          uuid.UUID
	TaskID      uuid.UUID
	FulfillerID uuid.UUID
	RespondedAt time.Time
}

// Dispatch records a delivered offer so redelivered activations skip it.
type Dispatch struct {
	TaskID      uuid.UUID
	FulfillerID uuid.UUID
	SentAt      time.Time
}

// CandidateLimit caps how many fulfillers are offered a task.
func (t *Task) CandidateLimit() int {
	if t.SlotsNeeded*3 < 1 {
		return 1
	}
	return t.SlotsNeeded * 3
}
