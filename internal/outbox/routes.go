package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	domain "dealbroker/internal/domain/outbox"
	"dealbroker/internal/domain/task"
	"dealbroker/internal/repository"
	broker_errors "dealbroker/pkg/errors"
)

// ErrSkipEvent settles an event as published without sending it.
var ErrSkipEvent = errors.New("event skipped")

// Route describes how one event type leaves the outbox.
type Route struct {
	Topic string
	// Prepare runs inside the publishing transaction before the broker send
	// and returns the event as it goes out. Returning an error wrapping
	// ErrSkipEvent drops the event without a send.
	Prepare func(ctx context.Context, repos repository.Repositories, event domain.OutboxEvent) (domain.OutboxEvent, error)
}

// RetryClassifier determines whether an error should not be retried.
type RetryClassifier interface {
	IsNonRetryable(err error) bool
}

type RetryClassifierFunc func(err error) bool

func (fn RetryClassifierFunc) IsNonRetryable(err error) bool {
	if fn == nil {
		return false
	}
	return fn(err)
}

// DefaultRetryClassifier treats a missing aggregate or an impossible state
// change as permanent.
var DefaultRetryClassifier = RetryClassifierFunc(func(err error) bool {
	return errors.Is(err, broker_errors.ErrNotFound) || errors.Is(err, broker_errors.ErrInvalidTransition)
})

// Routes maps event types to their route. An event type without a route is
// unknown and fails permanently.
type Routes map[string]Route

func (r Routes) Register(eventType string, route Route) error {
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		return fmt.Errorf("%w: empty event type", broker_errors.ErrInvalidInput)
	}
	if route.Topic == "" {
		return fmt.Errorf("%w: route for %s has no topic", broker_errors.ErrInvalidInput, eventType)
	}
	if _, exists := r[eventType]; exists {
		return fmt.Errorf("%w: route for %s", broker_errors.ErrAlreadyExists, eventType)
	}
	r[eventType] = route
	return nil
}

// DefaultRoutes wires task.activated to topic.
func DefaultRoutes(topic string) Routes {
	routes := Routes{}
	_ = routes.Register(domain.EventTaskActivated, Route{Topic: topic, Prepare: EnsureTaskActive})
	return routes
}

// EnsureTaskActive reloads the task under lock and makes sure it is ACTIVE
// before its activation leaves the outbox. The payload is rebuilt from the
// reloaded task. A task closed in the meantime skips the event.
func EnsureTaskActive(ctx context.Context, repos repository.Repositories, event domain.OutboxEvent) (domain.OutboxEvent, error) {
	t, err := repos.Tasks.GetByIDForUpdate(ctx, event.AggregateID)
	if err != nil {
		return event, fmt.Errorf("load task %s: %w", event.AggregateID, err)
	}
	switch t.Status {
	case task.StatusActive:
	case task.StatusPendingReview:
		t.Status = task.StatusActive
		t.UpdatedAt = event.CreatedAt
		if err := repos.Tasks.UpdateStatus(ctx, t); err != nil {
			return event, err
		}
	case task.StatusClosed:
		return event, fmt.Errorf("task %s closed before activation: %w", t.ID, ErrSkipEvent)
	default:
		return event, fmt.Errorf("task %s is %s: %w", t.ID, t.Status, broker_errors.ErrInvalidTransition)
	}

	payload, err := json.Marshal(domain.TaskActivatedPayload{
		TaskID:      t.ID,
		OwnerID:     t.OwnerID,
		SlotsNeeded: t.SlotsNeeded,
		Price:       t.Price.String(),
	})
	if err != nil {
		return event, fmt.Errorf("encode task %s: %w", t.ID, err)
	}
	event.Payload = payload
	return event, nil
}
