package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"dealbroker/pkg/logger"
)

// BreakerConfig controls when the chat transport is considered down.
type BreakerConfig struct {
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
	MinRequests         uint32
	FailureRatio        float64
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:         3,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
		MinRequests:         10,
		FailureRatio:        0.5,
	}
}

// ErrTransportUnavailable is returned while the breaker is open or half-open
// and saturated.
var ErrTransportUnavailable = errors.New("chat transport unavailable")

// BreakerSender stops hammering the chat API once it keeps failing.
type BreakerSender struct {
	next    Sender
	breaker *gobreaker.CircuitBreaker
}

func NewBreakerSender(next Sender, name string, cfg BreakerConfig, log *logger.Logger) *BreakerSender {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures ||
				(counts.Requests >= cfg.MinRequests && failureRatio >= cfg.FailureRatio)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warnf("circuit breaker [%s] %s -> %s", name, from, to)
		},
		// a cancelled context or one unreachable chat says nothing about the transport
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, ErrRecipientUnreachable)
		},
	}
	return &BreakerSender{next: next, breaker: gobreaker.NewCircuitBreaker(settings)}
}

func (s *BreakerSender) Send(ctx context.Context, chatID int64, msg Message) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.next.Send(ctx, chatID, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
	}
	return err
}

func (s *BreakerSender) State() gobreaker.State {
	return s.breaker.State()
}
