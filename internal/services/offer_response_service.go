package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dealbroker/internal/domain/interaction"
	"dealbroker/internal/domain/task"
	"dealbroker/internal/notify"
	"dealbroker/internal/repository"
	broker_errors "dealbroker/pkg/errors"
	"dealbroker/pkg/logger"
)

// TaskMetrics receives task lifecycle observations.
type TaskMetrics interface {
	TaskClosed()
}

type OfferResponseService struct {
	store        repository.Store
	interactions *InteractionService
	deliverer    Deliverer
	metrics      TaskMetrics
	log          *logger.Logger
	now          func() time.Time
}

func NewOfferResponseService(store repository.Store, interactions *InteractionService, deliverer Deliverer, metrics TaskMetrics, log *logger.Logger) *OfferResponseService {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &OfferResponseService{
		store:        store,
		interactions: interactions,
		deliverer:    deliverer,
		metrics:      metrics,
		log:          log,
		now:          time.Now,
	}
}

// RespondAndFinalize records a fulfiller's response. The task row stays
// locked from the status check to the close so concurrent responders are
// counted one at a time and exactly one of them closes the task.
func (s *OfferResponseService) RespondAndFinalize(ctx context.Context, taskID, fulfillerID uuid.UUID) (task.Task, int, error) {
	var (
		out   task.Task
		count int
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		t, err := repos.Tasks.GetByIDForUpdate(ctx, taskID)
		if err != nil {
			return err
		}
		if t.Status != task.StatusActive {
			return broker_errors.ErrTaskNotActive
		}
		if fulfillerID == t.OwnerID {
			return fmt.Errorf("owner cannot respond to own task: %w", broker_errors.ErrForbidden)
		}

		exists, err := repos.Responses.Exists(ctx, taskID, fulfillerID)
		if err != nil {
			return err
		}
		if exists {
			return broker_errors.ErrDuplicateResponse
		}

		now := s.now()
		if err := repos.Responses.Create(ctx, &task.Response{
			ID:          uuid.New(),
			TaskID:      taskID,
			FulfillerID: fulfillerID,
			RespondedAt: now,
		}); err != nil {
			return err
		}

		count, err = repos.Responses.CountByTask(ctx, taskID)
		if err != nil {
			return err
		}
		if count == t.SlotsNeeded {
			t.Status = task.StatusClosed
			t.CompletedAt = broker_errors.TimePtr(now)
			t.UpdatedAt = now
			if err := repos.Tasks.UpdateStatus(ctx, t); err != nil {
				return err
			}
		}
		out = t
		return nil
	})
	if err != nil {
		return task.Task{}, 0, err
	}
	if out.Status == task.StatusClosed && s.metrics != nil {
		s.metrics.TaskClosed()
	}
	return out, count, nil
}

// RespondResult is what a fulfiller's "take the offer" produces.
type RespondResult struct {
	Task         task.Task
	Responses    int
	Interaction  interaction.Interaction
	ContactsSent bool
}

// Respond finalizes the response, opens the interaction for the pair and
// hands the fulfiller's contact to the requester. Contact delivery failure
// does not undo the response; the deliverer dead-letters it.
func (s *OfferResponseService) Respond(ctx context.Context, taskID, fulfillerID uuid.UUID) (RespondResult, error) {
	fulfiller, err := s.store.Repos().Users.GetByID(ctx, fulfillerID)
	if err != nil {
		return RespondResult{}, fmt.Errorf("fulfiller: %w", err)
	}
	if !fulfiller.CanFulfil() {
		return RespondResult{}, broker_errors.ErrForbidden
	}
	if !fulfiller.Confirmed {
		return RespondResult{}, broker_errors.ErrProfileUnconfirmed
	}

	t, count, err := s.RespondAndFinalize(ctx, taskID, fulfillerID)
	if err != nil {
		return RespondResult{}, err
	}
	res := RespondResult{Task: t, Responses: count}

	res.Interaction, err = s.interactions.OpenForContacts(ctx, t.ID, fulfillerID, t.OwnerID)
	if err != nil {
		return res, fmt.Errorf("open interaction: %w", err)
	}

	owner, err := s.store.Repos().Users.GetByID(ctx, t.OwnerID)
	if err != nil {
		return res, fmt.Errorf("task owner: %w", err)
	}
	if err := s.deliverer.Deliver(ctx, owner.ExternalID, notify.ContactsMessage(t, fulfiller), t.ID.String()); err != nil {
		s.log.WithContext(ctx).Warn("contacts not delivered",
			zap.String("task_id", t.ID.String()),
			zap.String("interaction_id", res.Interaction.ID.String()),
			zap.Error(err),
		)
		return res, nil
	}
	res.ContactsSent = true
	return res, nil
}
