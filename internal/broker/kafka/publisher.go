package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"dealbroker/internal/events"
)

// Producer defines the interface for producing messages to Kafka
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

type Publisher struct {
	client Producer
}

func NewPublisher(client Producer) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Publish(ctx context.Context, topic string, key, value []byte) error {
	record := &kgo.Record{Topic: topic, Key: key, Value: value}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// DeadLetterSink writes dead letters to a Kafka topic.
type DeadLetterSink struct {
	publisher *Publisher
	topic     string
}

func NewDeadLetterSink(client Producer, topic string) *DeadLetterSink {
	return &DeadLetterSink{publisher: NewPublisher(client), topic: topic}
}

func (s *DeadLetterSink) DeadLetter(ctx context.Context, dl events.DeadLetter) error {
	value, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}
	return s.publisher.Publish(ctx, s.topic, []byte(dl.Recipient), value)
}
