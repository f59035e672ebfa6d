package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"dealbroker/internal/domain/interaction"
	"dealbroker/internal/domain/outbox"
	"dealbroker/internal/domain/task"
	"dealbroker/internal/domain/user"
)

type UserRepository interface {
	Create(ctx context.Context, u *user.User) error
	GetByID(ctx context.Context, id uuid.UUID) (user.User, error)
	GetByExternalID(ctx context.Context, externalID int64) (user.User, error)
	SetConfirmed(ctx context.Context, id uuid.UUID, confirmed bool, at time.Time) error
	SetStatus(ctx context.Context, id uuid.UUID, status user.Status, at time.Time) error
	// ListEligibleFulfillers returns confirmed, reachable fulfillers other
	// than ownerID, earliest confirmed first.
	ListEligibleFulfillers(ctx context.Context, ownerID uuid.UUID, limit int) ([]user.User, error)
}

type TaskRepository interface {
	Create(ctx context.Context, t *task.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (task.Task, error)
	// GetByIDForUpdate row-locks the task until the transaction ends.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (task.Task, error)
	UpdateStatus(ctx context.Context, t task.Task) error
}

type ResponseRepository interface {
	// Create returns ErrDuplicateResponse when the fulfiller already responded.
	Create(ctx context.Context, r *task.Response) error
	Exists(ctx context.Context, taskID, fulfillerID uuid.UUID) (bool, error)
	CountByTask(ctx context.Context, taskID uuid.UUID) (int, error)
}

type DispatchRepository interface {
	// MarkSent is idempotent per (task, fulfiller).
	MarkSent(ctx context.Context, d task.Dispatch) error
	ListSent(ctx context.Context, taskID uuid.UUID) (map[uuid.UUID]bool, error)
}

type InteractionRepository interface {
	Create(ctx context.Context, i *interaction.Interaction) error
	GetByID(ctx context.Context, id uuid.UUID) (interaction.Interaction, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (interaction.Interaction, error)
	GetByParticipants(ctx context.Context, taskID, fulfillerID, requesterID uuid.UUID) (interaction.Interaction, error)
	Update(ctx context.Context, i interaction.Interaction) error
	// ListDue returns PENDING interactions whose next check is at or before now.
	ListDue(ctx context.Context, now time.Time, limit int) ([]interaction.Interaction, error)
}

type OutboxRepository interface {
	Create(ctx context.Context, event *outbox.OutboxEvent) error
	GetByID(ctx context.Context, id uuid.UUID) (outbox.OutboxEvent, error)
	// ClaimBatch moves up to limit claimable events to PROCESSING, oldest
	// first. PENDING and non-terminal FAILED events are claimable; the caller
	// decides what to do with events past its retry ceiling.
	ClaimBatch(ctx context.Context, limit int, now time.Time) ([]outbox.OutboxEvent, error)
	MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error
	// MarkSkipped settles a PROCESSING event as PUBLISHED without a broker
	// send, keeping reason in last_error.
	MarkSkipped(ctx context.Context, id uuid.UUID, reason string, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, retryCount int, lastError string, terminal bool, at time.Time) error
	// ReleaseStuck fails PROCESSING events untouched since before cutoff,
	// counting the lost attempt.
	ReleaseStuck(ctx context.Context, cutoff time.Time, maxRetries int, at time.Time) (int, error)
}

// Repositories groups every repository bound to one connection or
// transaction.
type Repositories struct {
	Users        UserRepository
	Tasks        TaskRepository
	Responses    ResponseRepository
	Dispatches   DispatchRepository
	Interactions InteractionRepository
	Outbox       OutboxRepository
}

// Store hands out repositories, either autocommit or inside one transaction.
type Store interface {
	Repos() Repositories
	// WithTx runs fn inside a transaction. A non-nil error from fn rolls
	// every write back.
	WithTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
