package notify

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"time"

	"go.uber.org/zap"

	"dealbroker/internal/events"
	"dealbroker/pkg/logger"
)

// Metrics receives delivery observations.
type Metrics interface {
	DeadLettered()
}

type nopMetrics struct{}

func (nopMetrics) DeadLettered() {}

// Deliverer sends one message with bounded retries. A recipient still
// unreachable after the last attempt, or rejected outright by the chat API,
// is reported to the dead-letter sink.
type Deliverer struct {
	sender    Sender
	sink      events.DeadLetterSink
	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration
	metrics   Metrics
	log       *logger.Logger
	clock     func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

type DelivererOption func(*Deliverer)

func WithDeliveryMetrics(m Metrics) DelivererOption {
	return func(d *Deliverer) {
		if m != nil {
			d.metrics = m
		}
	}
}

func WithDeliveryLogger(l *logger.Logger) DelivererOption {
	return func(d *Deliverer) {
		if l != nil {
			d.log = l
		}
	}
}

func WithDeliveryClock(clock func() time.Time) DelivererOption {
	return func(d *Deliverer) { d.clock = clock }
}

// WithSleep replaces the wait between attempts.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) DelivererOption {
	return func(d *Deliverer) { d.sleep = sleep }
}

func NewDeliverer(sender Sender, sink events.DeadLetterSink, attempts int, baseDelay time.Duration, opts ...DelivererOption) *Deliverer {
	if attempts < 1 {
		attempts = 1
	}
	d := &Deliverer{
		sender:    sender,
		sink:      sink,
		attempts:  attempts,
		baseDelay: baseDelay,
		maxDelay:  30 * baseDelay,
		metrics:   nopMetrics{},
		log:       logger.GetGlobalLogger(),
		clock:     time.Now,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Deliver sends msg to chatID. It returns nil once an attempt succeeds,
// otherwise the last send error after the dead letter has been recorded.
// taskID is optional context for the dead letter.
func (d *Deliverer) Deliver(ctx context.Context, chatID int64, msg Message, taskID string) error {
	var err error
	for attempt := 0; attempt < d.attempts; attempt++ {
		if attempt > 0 {
			if serr := d.sleep(ctx, backoff(attempt-1, d.baseDelay, d.maxDelay)); serr != nil {
				return serr
			}
		}
		if err = d.sender.Send(ctx, chatID, msg); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		d.log.WithContext(ctx).Warn("send failed",
			zap.Int64("recipient", chatID),
			zap.String("task_id", taskID),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		// a blocked or vanished chat will not recover within the retry window
		if errors.Is(err, ErrRecipientUnreachable) {
			break
		}
	}

	d.deadLetter(ctx, chatID, taskID, err)
	return err
}

func (d *Deliverer) deadLetter(ctx context.Context, chatID int64, taskID string, cause error) {
	d.metrics.DeadLettered()
	if d.sink == nil {
		return
	}
	dl := events.DeadLetter{
		Event:     events.EventNotificationFailed,
		Recipient: strconv.FormatInt(chatID, 10),
		Reason:    cause.Error(),
		TaskID:    taskID,
		FailedAt:  d.clock().UTC(),
	}
	// best effort: a lost dead letter is logged, not retried
	if err := d.sink.DeadLetter(ctx, dl); err != nil {
		d.log.WithContext(ctx).Error("dead letter publish failed",
			zap.Int64("recipient", chatID),
			zap.Error(err),
		)
	}
}

// backoff returns a full-jitter delay in [0, base*2^attempt), capped at ceiling.
func backoff(attempt int, base, ceiling time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt > 20 {
		attempt = 20
	}
	delay := base << attempt
	if ceiling > 0 && delay > ceiling {
		delay = ceiling
	}
	return time.Duration(rand.Int64N(int64(delay)))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
