// Package amqp delivers dead letters to a RabbitMQ queue.
package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"dealbroker/internal/events"
)

// Channel is the subset of *amqp.Channel the sink needs.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

var ErrChannelRequired = errors.New("amqp channel is required")

// DeadLetterSink publishes dead letters to a durable queue on the default
// exchange.
type DeadLetterSink struct {
	ch    Channel
	queue string
}

// NewDeadLetterSink declares queue and returns a sink writing to it.
func NewDeadLetterSink(ch Channel, queue string) (*DeadLetterSink, error) {
	if ch == nil {
		return nil, ErrChannelRequired
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare dead letter queue: %w", err)
	}
	return &DeadLetterSink{ch: ch, queue: queue}, nil
}

func (s *DeadLetterSink) DeadLetter(ctx context.Context, dl events.DeadLetter) error {
	body, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    dl.FailedAt,
		Type:         dl.Event,
		Body:         body,
	}
	if err := s.ch.PublishWithContext(ctx, "", s.queue, false, false, msg); err != nil {
		return fmt.Errorf("publish dead letter: %w", err)
	}
	return nil
}

// Dial opens a connection and a channel. Closing the connection closes the
// channel too.
func Dial(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open amqp channel: %w", err)
	}
	return conn, ch, nil
}
