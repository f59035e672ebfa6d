package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealbroker/internal/events"
)

type recordingSink struct {
	mu      sync.Mutex
	letters []events.DeadLetter
	err     error
}

func (s *recordingSink) DeadLetter(_ context.Context, dl events.DeadLetter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.letters = append(s.letters, dl)
	return s.err
}

type countingMetrics struct{ dead int }

func (m *countingMetrics) DeadLettered() { m.dead++ }

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func TestDeliverRetriesUntilSuccess(t *testing.T) {
	calls := 0
	sender := SenderFunc(func(context.Context, int64, Message) error {
		calls++
		if calls < 3 {
			return errors.New("timeout")
		}
		return nil
	})
	sink := &recordingSink{}
	d := NewDeliverer(sender, sink, 3, time.Millisecond, WithSleep(noSleep))

	require.NoError(t, d.Deliver(context.Background(), 7, Message{Text: "hi"}, ""))
	assert.Equal(t, 3, calls)
	assert.Empty(t, sink.letters)
}

func TestDeliverDeadLettersExhaustedRecipient(t *testing.T) {
	boom := errors.New("Forbidden: bot was blocked by the user")
	calls := 0
	sender := SenderFunc(func(context.Context, int64, Message) error {
		calls++
		return boom
	})
	sink := &recordingSink{}
	m := &countingMetrics{}
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	d := NewDeliverer(sender, sink, 2, time.Millisecond,
		WithSleep(noSleep),
		WithDeliveryMetrics(m),
		WithDeliveryClock(func() time.Time { return now }),
	)

	err := d.Deliver(context.Background(), 1001, Message{Text: "offer"}, "task-1")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, m.dead)

	require.Len(t, sink.letters, 1)
	assert.Equal(t, events.DeadLetter{
		Event:     "notification_failed",
		Recipient: "1001",
		Reason:    boom.Error(),
		TaskID:    "task-1",
		FailedAt:  now,
	}, sink.letters[0])
}

func TestDeliverSinkFailureDoesNotMaskSendError(t *testing.T) {
	boom := errors.New("chat not found")
	sender := SenderFunc(func(context.Context, int64, Message) error { return boom })
	sink := &recordingSink{err: errors.New("broker down")}
	d := NewDeliverer(sender, sink, 1, 0, WithSleep(noSleep))

	assert.ErrorIs(t, d.Deliver(context.Background(), 1, Message{}, ""), boom)
	assert.Len(t, sink.letters, 1)
}

func TestDeliverStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	sender := SenderFunc(func(context.Context, int64, Message) error {
		calls++
		cancel()
		return errors.New("interrupted")
	})
	sink := &recordingSink{}
	d := NewDeliverer(sender, sink, 5, time.Millisecond, WithSleep(noSleep))

	assert.ErrorIs(t, d.Deliver(ctx, 1, Message{}, ""), context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sink.letters)
}

func TestBackoffBounds(t *testing.T) {
	assert.Zero(t, backoff(3, 0, time.Second))
	for attempt := 0; attempt < 8; attempt++ {
		d := backoff(attempt, 100*time.Millisecond, time.Second)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.Less(t, d, time.Second)
	}
}

func TestDeliverDoesNotRetryUnreachableRecipient(t *testing.T) {
	calls := 0
	sender := SenderFunc(func(context.Context, int64, Message) error {
		calls++
		return fmt.Errorf("telegram send to 7: %w", ErrRecipientUnreachable)
	})
	sink := &recordingSink{}
	d := NewDeliverer(sender, sink, 3, time.Millisecond, WithSleep(noSleep))

	err := d.Deliver(context.Background(), 7, Message{Text: "hi"}, "task-1")
	assert.ErrorIs(t, err, ErrRecipientUnreachable)
	assert.Equal(t, 1, calls)
	require.Len(t, sink.letters, 1)
	assert.Equal(t, "7", sink.letters[0].Recipient)
}
