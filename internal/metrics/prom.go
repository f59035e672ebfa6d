package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type PromMetrics struct {
	claimed        prometheus.Counter
	published      prometheus.Counter
	publishFailed  *prometheus.CounterVec
	released       prometheus.Counter
	publishLatency prometheus.Histogram
	offersSent     prometheus.Counter
	deadLetters    prometheus.Counter
	remindersSent  prometheus.Counter
	tasksClosed    prometheus.Counter
}

func NewPromMetrics(reg prometheus.Registerer) *PromMetrics {

	m := &PromMetrics{
		claimed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "outbox_events_claimed_total",
			Help: "Number of claimed outbox events",
		}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "outbox_events_published_total",
			Help: "Number of outbox events published to the broker",
		}),
		publishFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_events_failed_total",
			Help: "Number of failed outbox publish attempts",
		}, []string{"terminal"}),
		released: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "outbox_events_released_total",
			Help: "Number of outbox events released after a processing timeout",
		}),
		publishLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "outbox_publish_latency_seconds",
			Help:    "Latency of outbox publish transactions",
			Buckets: prometheus.DefBuckets,
		}),
		offersSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "offer_notifications_sent_total",
			Help: "Number of offers delivered to fulfillers",
		}),
		deadLetters: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notifications_dead_lettered_total",
			Help: "Number of notifications moved to the dead-letter channel",
		}),
		remindersSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedback_reminders_sent_total",
			Help: "Number of feedback prompts delivered",
		}),
		tasksClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tasks_closed_total",
			Help: "Number of tasks closed by reaching their slot count",
		}),
	}
	reg.MustRegister(
		m.claimed,
		m.published,
		m.publishFailed,
		m.released,
		m.publishLatency,
		m.offersSent,
		m.deadLetters,
		m.remindersSent,
		m.tasksClosed,
	)
	return m
}

func (m *PromMetrics) EventsClaimed(n int) {
	m.claimed.Add(float64(n))
}
func (m *PromMetrics) EventPublished() {
	m.published.Inc()
}
func (m *PromMetrics) EventFailed(terminal bool) {
	label := "false"
	if terminal {
		label = "true"
	}
	m.publishFailed.WithLabelValues(label).Inc()
}
func (m *PromMetrics) EventsReleased(n int) {
	m.released.Add(float64(n))
}
func (m *PromMetrics) PublishLatency(d time.Duration) {
	m.publishLatency.Observe(d.Seconds())
}
func (m *PromMetrics) OfferSent() {
	m.offersSent.Inc()
}
func (m *PromMetrics) DeadLettered() {
	m.deadLetters.Inc()
}
func (m *PromMetrics) ReminderSent() {
	m.remindersSent.Inc()
}
func (m *PromMetrics) TaskClosed() {
	m.tasksClosed.Inc()
}

// Nop discards every observation.
type Nop struct{}

func (Nop) EventsClaimed(int)            {}
func (Nop) EventPublished()              {}
func (Nop) EventFailed(bool)             {}
func (Nop) EventsReleased(int)           {}
func (Nop) PublishLatency(time.Duration) {}
func (Nop) OfferSent()                   {}
func (Nop) DeadLettered()                {}
func (Nop) ReminderSent()                {}
func (Nop) TaskClosed()                  {}
