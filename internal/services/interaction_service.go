package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dealbroker/internal/domain/interaction"
	"dealbroker/internal/repository"
	broker_errors "dealbroker/pkg/errors"
	"dealbroker/pkg/logger"
)

// InteractionService applies feedback to interactions. Every write reads the
// row under lock, runs the domain transition and saves it in one
// transaction, so the two parties may answer concurrently.
type InteractionService struct {
	store  repository.Store
	policy interaction.PostponePolicy
	log    *logger.Logger
	now    func() time.Time
}

func NewInteractionService(store repository.Store, policy interaction.PostponePolicy, log *logger.Logger) *InteractionService {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &InteractionService{store: store, policy: policy, log: log, now: time.Now}
}

func (s *InteractionService) GetByID(ctx context.Context, id uuid.UUID) (interaction.Interaction, error) {
	return s.store.Repos().Interactions.GetByID(ctx, id)
}

// OpenForContacts returns the interaction of the triple, creating it on the
// first contact exchange. Its first check is due after the postpone delay.
func (s *InteractionService) OpenForContacts(ctx context.Context, taskID, fulfillerID, requesterID uuid.UUID) (interaction.Interaction, error) {
	repo := s.store.Repos().Interactions

	existing, err := repo.GetByParticipants(ctx, taskID, fulfillerID, requesterID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, broker_errors.ErrNotFound) {
		return interaction.Interaction{}, err
	}

	created := interaction.New(taskID, fulfillerID, requesterID, s.now(), s.policy.Delay)
	err = repo.Create(ctx, created)
	if errors.Is(err, broker_errors.ErrAlreadyExists) {
		// lost the race to a concurrent opener
		return repo.GetByParticipants(ctx, taskID, fulfillerID, requesterID)
	}
	if err != nil {
		return interaction.Interaction{}, err
	}
	return *created, nil
}

type FeedbackInput struct {
	InteractionID uuid.UUID
	UserID        uuid.UUID
	// Side, when set, must match the side UserID plays.
	Side interaction.Side
	Text string
}

// SubmitFeedback classifies the report and applies it for the caller's side.
func (s *InteractionService) SubmitFeedback(ctx context.Context, in FeedbackInput) (interaction.Interaction, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return interaction.Interaction{}, fmt.Errorf("empty feedback: %w", broker_errors.ErrInvalidInput)
	}
	outcome := interaction.Classify(text)

	var out interaction.Interaction
	err := s.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		i, err := repos.Interactions.GetByIDForUpdate(ctx, in.InteractionID)
		if err != nil {
			return err
		}
		side, ok := i.SideOf(in.UserID)
		if !ok || (in.Side != "" && in.Side != side) {
			return broker_errors.ErrNotParticipant
		}
		if err := i.Submit(side, outcome, text, s.now(), s.policy); err != nil {
			return err
		}
		if err := repos.Interactions.Update(ctx, i); err != nil {
			return err
		}
		out = i
		return nil
	})
	if err != nil {
		return interaction.Interaction{}, err
	}

	s.log.WithContext(ctx).Info("feedback applied",
		zap.String("interaction_id", out.ID.String()),
		zap.String("outcome", string(outcome)),
		zap.String("status", string(out.Status)),
		zap.Int("postpone_count", out.PostponeCount),
	)
	return out, nil
}

// ResolveManually is the operator path out of ISSUE.
func (s *InteractionService) ResolveManually(ctx context.Context, id uuid.UUID, to interaction.Status) (interaction.Interaction, error) {
	var out interaction.Interaction
	err := s.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		i, err := repos.Interactions.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := i.Resolve(to, s.now()); err != nil {
			return err
		}
		if err := repos.Interactions.Update(ctx, i); err != nil {
			return err
		}
		out = i
		return nil
	})
	if err != nil {
		return interaction.Interaction{}, err
	}
	s.log.WithContext(ctx).Info("interaction resolved manually",
		zap.String("interaction_id", out.ID.String()),
		zap.String("status", string(out.Status)),
	)
	return out, nil
}
