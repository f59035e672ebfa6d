package events

import (
	"context"
	"time"

	"dealbroker/internal/domain/outbox"
)

// Event type constants follow the format: domain.action
const (
	EventTypeTaskActivated = outbox.EventTaskActivated
)

// EventNotificationFailed tags dead letters for undeliverable notifications.
const EventNotificationFailed = "notification_failed"

// DeadLetter reports a recipient that exhausted its delivery retries.
type DeadLetter struct {
	Event     string    `json:"event"`
	Recipient string    `json:"recipient"`
	Reason    string    `json:"reason"`
	TaskID    string    `json:"task_id,omitempty"`
	FailedAt  time.Time `json:"failed_at"`
}

// Publisher writes one record to a broker topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// DeadLetterSink receives notifications that could not be delivered.
type DeadLetterSink interface {
	DeadLetter(ctx context.Context, dl DeadLetter) error
}
