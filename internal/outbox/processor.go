package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	domain "dealbroker/internal/domain/outbox"
	"dealbroker/internal/events"
	"dealbroker/internal/metrics"
	"dealbroker/internal/repository"
	"dealbroker/pkg/logger"
)

// Metrics receives processor observations.
type Metrics interface {
	EventsClaimed(n int)
	EventPublished()
	EventFailed(terminal bool)
	EventsReleased(n int)
	PublishLatency(d time.Duration)
}

type Processor struct {
	store             repository.Store
	publisher         events.Publisher
	routes            Routes
	classifier        RetryClassifier
	metrics           Metrics
	log               *logger.Logger
	clock             func() time.Time
	batchSize         int
	interval          time.Duration
	maxRetries        int
	processingTimeout time.Duration
}

type Option func(*Processor)

func WithClock(clock func() time.Time) Option {
	return func(p *Processor) { p.clock = clock }
}

func WithMetrics(m Metrics) Option {
	return func(p *Processor) {
		if m != nil {
			p.metrics = m
		}
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.log = l
		}
	}
}

func WithRetryClassifier(c RetryClassifier) Option {
	return func(p *Processor) { p.classifier = c }
}

// WithProcessingTimeout sets how long an event may stay PROCESSING before a
// drain assumes its worker died. Zero disables the release.
func WithProcessingTimeout(d time.Duration) Option {
	return func(p *Processor) { p.processingTimeout = d }
}

func NewProcessor(store repository.Store, publisher events.Publisher, routes Routes, batchSize int, interval time.Duration, maxRetries int, opts ...Option) *Processor {
	p := &Processor{
		store:      store,
		publisher:  publisher,
		routes:     routes,
		classifier: DefaultRetryClassifier,
		metrics:    metrics.Nop{},
		log:        logger.GetGlobalLogger(),
		clock:      time.Now,
		batchSize:  batchSize,
		interval:   interval,
		maxRetries: maxRetries,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Processor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.Drain(ctx); err != nil && ctx.Err() == nil {
				p.log.Errorf("outbox drain failed: %v", err)
			}
		}
	}
}

// DrainStats summarises one Drain call.
type DrainStats struct {
	Claimed   int
	Published int
	Skipped   int
	Retrying  int
	Dead      int
	Released  int
}

// Drain processes claimable events oldest first, one page at a time. It
// keeps paging while pages come back full and every event in them settled
// for good, so events that just failed wait for the next drain.
func (p *Processor) Drain(ctx context.Context) (DrainStats, error) {
	var stats DrainStats

	if p.processingTimeout > 0 {
		now := p.clock()
		n, err := p.store.Repos().Outbox.ReleaseStuck(ctx, now.Add(-p.processingTimeout), p.maxRetries, now)
		if err != nil {
			return stats, fmt.Errorf("release stuck events: %w", err)
		}
		if n > 0 {
			stats.Released += n
			p.metrics.EventsReleased(n)
			p.log.Warnf("released %d outbox events stuck in processing", n)
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		batch, err := p.store.Repos().Outbox.ClaimBatch(ctx, p.batchSize, p.maxRetries, p.clock())
		if err != nil {
			return stats, fmt.Errorf("claim outbox batch: %w", err)
		}
		if len(batch) == 0 {
			return stats, nil
		}
		stats.Claimed += len(batch)
		p.metrics.EventsClaimed(len(batch))

		retrying := 0
		for _, e := range batch {
			switch p.processEvent(ctx, e) {
			case resultPublished:
				stats.Published++
			case resultSkipped:
				stats.Skipped++
			case resultRetrying:
				stats.Retrying++
				retrying++
			case resultDead:
				stats.Dead++
			}
		}
		if len(batch) < p.batchSize || retrying > 0 {
			return stats, nil
		}
	}
}

var errMalformedEvent = errors.New("malformed outbox event")

type result int

const (
	resultPublished result = iota
	resultSkipped
	resultRetrying
	resultDead
)

func (p *Processor) processEvent(ctx context.Context, e domain.OutboxEvent) result {
	log := p.log.With(
		zap.String("event_id", e.ID.String()),
		zap.String("event_type", e.EventType),
		zap.Int("retry_count", e.RetryCount),
	)

	if e.RetryCount >= p.maxRetries {
		reason := fmt.Sprintf("max retries (%d) exceeded", p.maxRetries)
		p.fail(ctx, log, e, e.RetryCount, reason, true)
		return resultDead
	}

	route, ok := p.routes[e.EventType]
	if !ok {
		p.fail(ctx, log, e, e.RetryCount+1, fmt.Sprintf("unknown event type: %s", e.EventType), true)
		return resultDead
	}

	started := p.clock()
	err := p.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		out := e
		if route.Prepare != nil {
			prepared, err := route.Prepare(ctx, repos, e)
			if err != nil {
				return err
			}
			out = prepared
		}
		payload, err := json.Marshal(events.FromOutbox(out))
		if err != nil {
			return fmt.Errorf("%w: %v", errMalformedEvent, err)
		}
		if err := p.publisher.Publish(ctx, route.Topic, []byte(e.AggregateID.String()), payload); err != nil {
			return fmt.Errorf("publish to %s: %w", route.Topic, err)
		}
		return repos.Outbox.MarkPublished(ctx, e.ID, p.clock())
	})
	if errors.Is(err, ErrSkipEvent) {
		if merr := p.store.Repos().Outbox.MarkSkipped(ctx, e.ID, err.Error(), p.clock()); merr != nil {
			// The row stays PROCESSING; ReleaseStuck picks it up later.
			log.Errorf("mark outbox event skipped: %v", errors.Join(merr, err))
			return resultRetrying
		}
		log.Infof("outbox event skipped: %v", err)
		return resultSkipped
	}
	if err != nil {
		retries := e.RetryCount + 1
		terminal := retries >= p.maxRetries || errors.Is(err, errMalformedEvent) || p.isNonRetryable(err)
		p.fail(ctx, log, e, retries, err.Error(), terminal)
		if terminal {
			return resultDead
		}
		return resultRetrying
	}

	p.metrics.EventPublished()
	p.metrics.PublishLatency(p.clock().Sub(started))
	log.Debugf("outbox event published")
	return resultPublished
}

func (p *Processor) isNonRetryable(err error) bool {
	return p.classifier != nil && p.classifier.IsNonRetryable(err)
}

func (p *Processor) fail(ctx context.Context, log *logger.Logger, e domain.OutboxEvent, retries int, reason string, terminal bool) {
	p.metrics.EventFailed(terminal)
	if err := p.store.Repos().Outbox.MarkFailed(ctx, e.ID, retries, reason, terminal, p.clock()); err != nil {
		// The row stays PROCESSING; ReleaseStuck picks it up later.
		log.Errorf("mark outbox event failed: %v", errors.Join(err, errors.New(reason)))
		return
	}
	if terminal {
		log.Errorf("outbox event failed permanently: %s", reason)
		return
	}
	log.Warnf("outbox event publish failed, will retry: %s", reason)
}
