package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	domain "dealbroker/internal/domain/outbox"
	"dealbroker/internal/repository"
)

// Publish records one PENDING event through repo. Pass the repository bound
// to the caller's transaction so the event commits or rolls back together
// with the domain change it describes.
func Publish(ctx context.Context, repo repository.OutboxRepository, eventType, aggregateType string, aggregateID uuid.UUID, payload interface{}, now time.Time) (domain.OutboxEvent, error) {
	data := []byte("{}")
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return domain.OutboxEvent{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
		}
		data = encoded
	}

	event := domain.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Payload:       data,
		Status:        domain.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := repo.Create(ctx, &event); err != nil {
		return domain.OutboxEvent{}, fmt.Errorf("create outbox event: %w", err)
	}
	return event, nil
}
