package outbox

import (
	"context"

	"dealbroker/config"
	"dealbroker/internal/events"
	"dealbroker/internal/repository"
)

type Runner struct {
	processor *Processor
}

func NewRunner(processor *Processor) *Runner {
	return &Runner{processor: processor}
}

func (r *Runner) Start(ctx context.Context) {
	go r.processor.Run(ctx)
}

// ProcessorFromConfig builds the processor for the task activation topic.
func ProcessorFromConfig(cfg *config.Config, store repository.Store, publisher events.Publisher, opts ...Option) *Processor {
	opts = append([]Option{WithProcessingTimeout(cfg.Outbox.ProcessingTimeout)}, opts...)
	return NewProcessor(
		store,
		publisher,
		DefaultRoutes(cfg.Kafka.Topic),
		cfg.Outbox.BatchSize,
		cfg.Outbox.PollInterval,
		cfg.Outbox.MaxRetries,
		opts...,
	)
}
