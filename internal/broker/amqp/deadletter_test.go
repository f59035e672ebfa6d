package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealbroker/internal/events"
)

type fakeChannel struct {
	declared   []string
	published  []amqp.Publishing
	keys       []string
	declareErr error
	publishErr error
}

func (f *fakeChannel) QueueDeclare(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	if f.declareErr != nil {
		return amqp.Queue{}, f.declareErr
	}
	f.declared = append(f.declared, name)
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

func TestDeadLetterSinkPublishesPersistentJSON(t *testing.T) {
	ch := &fakeChannel{}
	sink, err := NewDeadLetterSink(ch, "notification_failed")
	require.NoError(t, err)
	assert.Equal(t, []string{"notification_failed"}, ch.declared)

	dl := events.DeadLetter{
		Event:     events.EventNotificationFailed,
		Recipient: "1001",
		Reason:    "Forbidden: bot was blocked by the user",
		FailedAt:  time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, sink.DeadLetter(context.Background(), dl))

	require.Len(t, ch.published, 1)
	msg := ch.published[0]
	assert.Equal(t, "notification_failed", ch.keys[0])
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "application/json", msg.ContentType)

	var got events.DeadLetter
	require.NoError(t, json.Unmarshal(msg.Body, &got))
	assert.Equal(t, dl.Recipient, got.Recipient)
	assert.Equal(t, dl.Reason, got.Reason)
}

func TestDeadLetterSinkErrors(t *testing.T) {
	_, err := NewDeadLetterSink(nil, "q")
	assert.ErrorIs(t, err, ErrChannelRequired)

	boom := errors.New("channel closed")
	_, err = NewDeadLetterSink(&fakeChannel{declareErr: boom}, "q")
	assert.ErrorIs(t, err, boom)

	sink, err := NewDeadLetterSink(&fakeChannel{publishErr: boom}, "q")
	require.NoError(t, err)
	assert.ErrorIs(t, sink.DeadLetter(context.Background(), events.DeadLetter{}), boom)
}
