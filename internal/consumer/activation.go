// Package consumer reads task activation events and fans offers out to
// fulfillers.
package consumer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"dealbroker/internal/events"
	"dealbroker/pkg/logger"
)

// Fetcher is the consuming half of *kgo.Client.
type Fetcher interface {
	PollFetches(ctx context.Context) kgo.Fetches
	CommitRecords(ctx context.Context, rs ...*kgo.Record) error
}

// OfferNotifier sends the offers of one activated task. It must tolerate
// redelivery of the same task.
type OfferNotifier interface {
	NotifyOffers(ctx context.Context, taskID uuid.UUID) (int, error)
}

type ActivationConsumer struct {
	client     Fetcher
	notifier   OfferNotifier
	attempts   int
	retryDelay time.Duration
	log        *logger.Logger
}

func NewActivationConsumer(client Fetcher, notifier OfferNotifier, attempts int, retryDelay time.Duration, log *logger.Logger) *ActivationConsumer {
	if attempts < 1 {
		attempts = 1
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &ActivationConsumer{client: client, notifier: notifier, attempts: attempts, retryDelay: retryDelay, log: log}
}

// Run polls until ctx ends or the client is closed. Every record is
// committed after it is handled, successfully or not, so a poison record
// cannot stall the partition.
func (c *ActivationConsumer) Run(ctx context.Context) {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			c.log.Infof("activation consumer stopped")
			return
		}
		fetches.EachError(func(t string, p int32, err error) {
			c.log.Errorf("fetch err topic %s partition %d: %v", t, p, err)
		})

		for record := range fetches.RecordsAll() {
			if err := c.handleWithRetry(ctx, record); err != nil {
				c.log.Logger.Error("activation not handled",
					zap.String("topic", record.Topic),
					zap.Int64("offset", record.Offset),
					zap.Error(err),
				)
			}
			if err := c.client.CommitRecords(ctx, record); err != nil {
				c.log.Errorf("commit %s/%d@%d: %v", record.Topic, record.Partition, record.Offset, err)
				break
			}
		}
	}
}

func (c *ActivationConsumer) handleWithRetry(ctx context.Context, record *kgo.Record) error {
	var err error
	for attempt := 0; attempt < c.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}
		if err = c.Handle(ctx, record); err == nil || !retryable(err) {
			return err
		}
	}
	return err
}

// malformedError marks records that will never decode.
type malformedError struct{ err error }

func (e malformedError) Error() string { return e.err.Error() }
func (e malformedError) Unwrap() error { return e.err }

func retryable(err error) bool {
	_, malformed := err.(malformedError)
	return !malformed
}

// Handle processes one record. Events other than task.activated are
// ignored.
func (c *ActivationConsumer) Handle(ctx context.Context, record *kgo.Record) error {
	env, err := events.Decode(record.Value)
	if err != nil {
		return malformedError{err}
	}
	if env.EventType != events.EventTypeTaskActivated {
		c.log.Debugf("ignoring %s event %s", env.EventType, env.EventID)
		return nil
	}
	payload, err := env.TaskActivated()
	if err != nil {
		return malformedError{err}
	}
	if payload.TaskID == uuid.Nil {
		return malformedError{fmt.Errorf("event %s carries no task id", env.EventID)}
	}

	sent, err := c.notifier.NotifyOffers(ctx, payload.TaskID)
	if err != nil {
		return fmt.Errorf("notify offers for %s: %w", payload.TaskID, err)
	}
	c.log.Logger.Info("activation handled",
		zap.String("event_id", env.EventID.String()),
		zap.String("task_id", payload.TaskID.String()),
		zap.Int("offers_sent", sent),
	)
	return nil
}
