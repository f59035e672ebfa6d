package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status represents the processing state of an outbox event
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusPublished  Status = "PUBLISHED"
	StatusFailed     Status = "FAILED"
)

// Event types carried by the outbox. The set is closed: the processor fails
// anything else permanently.
const (
	EventTaskActivated = "task.activated"
)

const AggregateTask = "task"

// CanTransitionTo reports whether the processor may move an event from s to next.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusPublished || next == StatusFailed
	case StatusFailed:
		return next == StatusProcessing
	}
	return false
}

// OutboxEvent stores domain events waiting to be published to the broker
type OutboxEvent struct {
	ID            uuid.UUID
	EventType     string
	AggregateType string
	AggregateID   uuid.UUID
	Payload       json.RawMessage
	Status        Status
	RetryCount    int
	LastError     string
	// Terminal marks a FAILED event that will never be claimed again.
	Terminal    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ProcessedAt *time.Time
}

// TableName returns the database table name
func (OutboxEvent) TableName() string {
	return "outbox_events"
}

// TaskActivatedPayload is the payload of EventTaskActivated.
type TaskActivatedPayload struct {
	TaskID      uuid.UUID `json:"task_id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	SlotsNeeded int       `json:"slots_needed"`
	Price       string    `json:"price"`
}
