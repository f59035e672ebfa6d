package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dealbroker/internal/domain/task"
	"dealbroker/internal/domain/user"
	"dealbroker/internal/notify"
	"dealbroker/internal/repository"
	broker_errors "dealbroker/pkg/errors"
	"dealbroker/pkg/logger"
)

// Deliverer sends one message with its own retries and dead-lettering.
type Deliverer interface {
	Deliver(ctx context.Context, chatID int64, msg notify.Message, taskID string) error
}

// OfferMetrics receives offer fan-out observations.
type OfferMetrics interface {
	OfferSent()
}

type OfferDispatchService struct {
	store     repository.Store
	deliverer Deliverer
	fanOut    int
	metrics   OfferMetrics
	log       *logger.Logger
	now       func() time.Time
}

func NewOfferDispatchService(store repository.Store, deliverer Deliverer, fanOut int, metrics OfferMetrics, log *logger.Logger) *OfferDispatchService {
	if fanOut < 1 {
		fanOut = 1
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &OfferDispatchService{
		store:     store,
		deliverer: deliverer,
		fanOut:    fanOut,
		metrics:   metrics,
		log:       log,
		now:       time.Now,
	}
}

// Dispatch returns the fulfillers an ACTIVE task should be offered to:
// confirmed, reachable and not the owner, capped at three per slot.
func (s *OfferDispatchService) Dispatch(ctx context.Context, taskID uuid.UUID) ([]user.User, error) {
	repos := s.store.Repos()
	t, err := repos.Tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.Status != task.StatusActive {
		return nil, broker_errors.ErrTaskNotActive
	}
	return repos.Users.ListEligibleFulfillers(ctx, t.OwnerID, t.CandidateLimit())
}

// NotifyOffers handles one task.activated delivery. Each candidate gets an
// independent delivery; recipients already offered this task are skipped,
// so redelivered events do not notify anyone twice. A task that is no
// longer ACTIVE is ignored. It returns the number of offers sent.
func (s *OfferDispatchService) NotifyOffers(ctx context.Context, taskID uuid.UUID) (int, error) {
	log := s.log.With(zap.String("task_id", taskID.String()))

	candidates, err := s.Dispatch(ctx, taskID)
	if errors.Is(err, broker_errors.ErrTaskNotActive) || errors.Is(err, broker_errors.ErrNotFound) {
		log.Infof("skipping offers: %v", err)
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("select fulfillers: %w", err)
	}
	if len(candidates) == 0 {
		log.Infof("no eligible fulfillers")
		return 0, nil
	}

	repos := s.store.Repos()
	t, err := repos.Tasks.GetByID(ctx, taskID)
	if err != nil {
		return 0, err
	}
	owner, err := repos.Users.GetByID(ctx, t.OwnerID)
	if err != nil {
		return 0, fmt.Errorf("task owner: %w", err)
	}
	sent, err := repos.Dispatches.ListSent(ctx, taskID)
	if err != nil {
		return 0, fmt.Errorf("list sent offers: %w", err)
	}

	msg := notify.OfferMessage(t, owner)
	var delivered atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fanOut)
	for _, candidate := range candidates {
		if sent[candidate.ID] {
			continue
		}
		candidate := candidate
		g.Go(func() error {
			// failures stay per recipient; the deliverer dead-letters them
			if err := s.deliverer.Deliver(gctx, candidate.ExternalID, msg, taskID.String()); err != nil {
				return nil
			}
			if err := repos.Dispatches.MarkSent(gctx, task.Dispatch{TaskID: taskID, FulfillerID: candidate.ID, SentAt: s.now()}); err != nil {
				log.Errorf("record offer to %s: %v", candidate.ID, err)
			}
			delivered.Add(1)
			if s.metrics != nil {
				s.metrics.OfferSent()
			}
			return nil
		})
	}
	_ = g.Wait()

	n := int(delivered.Load())
	log.Infof("offers sent: %d of %d candidates", n, len(candidates))
	return n, ctx.Err()
}
