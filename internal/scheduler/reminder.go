// Package scheduler runs the periodic feedback reminder sweep.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"dealbroker/internal/domain/interaction"
	"dealbroker/internal/domain/user"
	"dealbroker/internal/notify"
	"dealbroker/internal/repository"
	"dealbroker/pkg/logger"
)

const sweepLockName = "feedback-reminder-sweep"

// DefaultRetryDelay is how long an interaction nobody could be prompted
// about waits before the next attempt.
const DefaultRetryDelay = time.Hour

// Deliverer sends one message with its own retries and dead-lettering.
type Deliverer interface {
	Deliver(ctx context.Context, chatID int64, msg notify.Message, taskID string) error
}

// Locker keeps the sweep single-flight across replicas.
type Locker interface {
	TryLock(ctx context.Context, name string) (func(context.Context) error, bool, error)
}

type Metrics interface {
	ReminderSent()
}

type ReminderSchedule struct {
	Location *time.Location
	Hour     int
	Minute   int
}

type ReminderSweep struct {
	store      repository.Store
	deliverer  Deliverer
	schedule   ReminderSchedule
	interval   time.Duration
	batchSize  int
	retryDelay time.Duration
	locker     Locker
	metrics    Metrics
	log        *logger.Logger
	clock      func() time.Time
}

type Option func(*ReminderSweep)

func WithClock(clock func() time.Time) Option {
	return func(s *ReminderSweep) { s.clock = clock }
}

func WithLocker(l Locker) Option {
	return func(s *ReminderSweep) { s.locker = l }
}

func WithMetrics(m Metrics) Option {
	return func(s *ReminderSweep) { s.metrics = m }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *ReminderSweep) {
		if l != nil {
			s.log = l
		}
	}
}

func WithBatchSize(n int) Option {
	return func(s *ReminderSweep) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithRetryDelay sets the backoff for interactions whose prompts all failed.
func WithRetryDelay(d time.Duration) Option {
	return func(s *ReminderSweep) {
		if d > 0 {
			s.retryDelay = d
		}
	}
}

func NewReminderSweep(store repository.Store, deliverer Deliverer, schedule ReminderSchedule, interval time.Duration, opts ...Option) *ReminderSweep {
	if schedule.Location == nil {
		schedule.Location = time.UTC
	}
	s := &ReminderSweep{
		store:      store,
		deliverer:  deliverer,
		schedule:   schedule,
		interval:   interval,
		batchSize:  100,
		retryDelay: DefaultRetryDelay,
		log:        logger.GetGlobalLogger(),
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ReminderSweep) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
				s.log.Errorf("reminder sweep failed: %v", err)
			}
		}
	}
}

// SweepStats summarises one RunOnce call.
type SweepStats struct {
	Due         int
	Prompted    int
	Rescheduled int
	Deferred    int
	Failed      int
	Skipped     bool
}

// RunOnce prompts every side still owing an answer on each due interaction.
// An interaction is rescheduled to the next reminder slot once at least one
// prompt went out. When none went out it is deferred by the retry delay, so
// unreachable parties cannot hold the head of the due queue. A failing
// interaction never stops the sweep.
func (s *ReminderSweep) RunOnce(ctx context.Context) (SweepStats, error) {
	var stats SweepStats

	if s.locker != nil {
		unlock, ok, err := s.locker.TryLock(ctx, sweepLockName)
		if err != nil {
			return stats, err
		}
		if !ok {
			stats.Skipped = true
			return stats, nil
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				s.log.Warnf("release sweep lock: %v", err)
			}
		}()
	}

	now := s.clock()
	due, err := s.store.Repos().Interactions.ListDue(ctx, now, s.batchSize)
	if err != nil {
		return stats, fmt.Errorf("list due interactions: %w", err)
	}
	stats.Due = len(due)

	for _, i := range due {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		prompted, err := s.remind(ctx, i)
		stats.Prompted += prompted
		if err != nil {
			stats.Failed++
			s.log.WithContext(ctx).Error("reminder failed",
				zap.String("interaction_id", i.ID.String()),
				zap.Error(err),
			)
		}

		next := s.retryAt(now)
		if prompted > 0 {
			next = interaction.NextReminderAt(now, s.schedule.Location, s.schedule.Hour, s.schedule.Minute)
		}
		if err := s.reschedule(ctx, i, next, now); err != nil {
			s.log.WithContext(ctx).Error("reschedule reminder failed",
				zap.String("interaction_id", i.ID.String()),
				zap.Error(err),
			)
			continue
		}
		if prompted > 0 {
			stats.Rescheduled++
		} else {
			stats.Deferred++
		}
	}
	return stats, nil
}

// retryAt is now plus the retry delay, never later than the next regular
// reminder slot.
func (s *ReminderSweep) retryAt(now time.Time) time.Time {
	retry := now.Add(s.retryDelay)
	slot := interaction.NextReminderAt(now, s.schedule.Location, s.schedule.Hour, s.schedule.Minute)
	if slot.Before(retry) {
		return slot
	}
	return retry
}

func (s *ReminderSweep) remind(ctx context.Context, i interaction.Interaction) (int, error) {
	users := s.store.Repos().Users
	requester, err := users.GetByID(ctx, i.RequesterID)
	if err != nil {
		return 0, fmt.Errorf("requester: %w", err)
	}
	fulfiller, err := users.GetByID(ctx, i.FulfillerID)
	if err != nil {
		return 0, fmt.Errorf("fulfiller: %w", err)
	}

	sides := []struct {
		side        interaction.Side
		recipient   user.User
		counterpart user.User
	}{
		{interaction.SideRequester, requester, fulfiller},
		{interaction.SideFulfiller, fulfiller, requester},
	}

	prompted := 0
	for _, sd := range sides {
		if !i.NeedsReminder(sd.side) {
			continue
		}
		msg := notify.FeedbackPrompt(i, sd.side, sd.counterpart)
		if err := s.deliverer.Deliver(ctx, sd.recipient.ExternalID, msg, i.TaskID.String()); err != nil {
			continue
		}
		prompted++
		if s.metrics != nil {
			s.metrics.ReminderSent()
		}
	}
	return prompted, nil
}

func (s *ReminderSweep) reschedule(ctx context.Context, i interaction.Interaction, next, now time.Time) error {
	return s.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		cur, err := repos.Interactions.GetByIDForUpdate(ctx, i.ID)
		if err != nil {
			return err
		}
		// feedback may have landed while the prompts were going out
		if cur.Status != interaction.StatusPending || cur.NextCheckAt == nil || cur.NextCheckAt.After(now) {
			return nil
		}
		cur.Reschedule(next, now)
		return repos.Interactions.Update(ctx, cur)
	})
}
