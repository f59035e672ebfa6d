package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dealbroker/internal/domain/outbox"
)

// Envelope is the wire form of every event leaving the outbox.
type Envelope struct {
	EventID       uuid.UUID       `json:"event_id"`
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

func FromOutbox(e outbox.OutboxEvent) Envelope {
	payload := e.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	return Envelope{
		EventID:       e.ID,
		EventType:     e.EventType,
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID.String(),
		OccurredAt:    e.CreatedAt.UTC(),
		Payload:       payload,
	}
}

func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	if env.EventType == "" {
		return env, fmt.Errorf("decode envelope: missing event_type")
	}
	return env, nil
}

// TaskActivated decodes the payload of a task.activated envelope.
func (e Envelope) TaskActivated() (outbox.TaskActivatedPayload, error) {
	var p outbox.TaskActivatedPayload
	if e.EventType != EventTypeTaskActivated {
		return p, fmt.Errorf("envelope carries %q, not %q", e.EventType, EventTypeTaskActivated)
	}
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return p, fmt.Errorf("decode %s payload: %w", e.EventType, err)
	}
	if p.TaskID == uuid.Nil {
		if id, err := uuid.Parse(e.AggregateID); err == nil {
			p.TaskID = id
		}
	}
	return p, nil
}
