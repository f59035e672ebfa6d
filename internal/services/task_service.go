package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	domain "dealbroker/internal/domain/outbox"
	"dealbroker/internal/domain/task"
	"dealbroker/internal/outbox"
	"dealbroker/internal/repository"
	broker_errors "dealbroker/pkg/errors"
)

// TaskService drives a task from DRAFT to ACTIVE. Activation records the
// task.activated event in the same transaction.
type TaskService struct {
	store repository.Store
	now   func() time.Time
}

func NewTaskService(store repository.Store) *TaskService {
	return &TaskService{store: store, now: time.Now}
}

type CreateTaskInput struct {
	OwnerID     uuid.UUID
	Title       string
	Description string
	Price       decimal.Decimal
	SlotsNeeded int
}

func (s *TaskService) Create(ctx context.Context, in CreateTaskInput) (task.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || in.SlotsNeeded < 1 || !in.Price.IsPositive() {
		return task.Task{}, broker_errors.ErrInvalidInput
	}

	var created task.Task
	err := s.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if _, err := repos.Users.GetByID(ctx, in.OwnerID); err != nil {
			return fmt.Errorf("task owner: %w", err)
		}
		now := s.now()
		created = task.Task{
			ID:          uuid.New(),
			OwnerID:     in.OwnerID,
			Title:       title,
			Description: strings.TrimSpace(in.Description),
			Price:       in.Price,
			SlotsNeeded: in.SlotsNeeded,
			Status:      task.StatusDraft,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return repos.Tasks.Create(ctx, &created)
	})
	if err != nil {
		return task.Task{}, err
	}
	return created, nil
}

func (s *TaskService) GetByID(ctx context.Context, id uuid.UUID) (task.Task, error) {
	return s.store.Repos().Tasks.GetByID(ctx, id)
}

// ConfirmPayment moves a DRAFT task to review once the paid amount matches
// its price. No event is emitted here.
func (s *TaskService) ConfirmPayment(ctx context.Context, taskID uuid.UUID, amount decimal.Decimal) (task.Task, error) {
	var out task.Task
	err := s.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		t, err := repos.Tasks.GetByIDForUpdate(ctx, taskID)
		if err != nil {
			return err
		}
		if !t.Status.CanTransitionTo(task.StatusPendingReview) {
			return fmt.Errorf("confirm payment for %s task: %w", t.Status, broker_errors.ErrInvalidTransition)
		}
		if !amount.Equal(t.Price) {
			return broker_errors.ErrAmountMismatch
		}
		t.Status = task.StatusPendingReview
		t.UpdatedAt = s.now()
		if err := repos.Tasks.UpdateStatus(ctx, t); err != nil {
			return err
		}
		out = t
		return nil
	})
	return out, err
}

// Approve activates a reviewed task and records task.activated atomically
// with the status change.
func (s *TaskService) Approve(ctx context.Context, taskID uuid.UUID) (task.Task, error) {
	var out task.Task
	err := s.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		t, err := repos.Tasks.GetByIDForUpdate(ctx, taskID)
		if err != nil {
			return err
		}
		if !t.Status.CanTransitionTo(task.StatusActive) {
			return fmt.Errorf("approve %s task: %w", t.Status, broker_errors.ErrInvalidTransition)
		}
		now := s.now()
		t.Status = task.StatusActive
		t.UpdatedAt = now
		if err := repos.Tasks.UpdateStatus(ctx, t); err != nil {
			return err
		}

		payload := domain.TaskActivatedPayload{
			TaskID:      t.ID,
			OwnerID:     t.OwnerID,
			SlotsNeeded: t.SlotsNeeded,
			Price:       t.Price.String(),
		}
		if _, err := outbox.Publish(ctx, repos.Outbox, domain.EventTaskActivated, domain.AggregateTask, t.ID, payload, now); err != nil {
			return err
		}
		out = t
		return nil
	})
	return out, err
}
