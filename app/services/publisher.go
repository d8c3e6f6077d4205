package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/amirphl/chat-sequencer/config"
	"github.com/amirphl/chat-sequencer/models"
)

var ErrUnknownBrokerDriver = errors.New("unknown broker driver")

// EventPublisher delivers events at least once. Publish returns nil only after the broker confirmed the event.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event models.Event) error
	Close() error
}

// RowWriter consumes the published events and persists rows. It lives in a separate service; events may be
// redelivered, so implementations must treat (token, chatNumber[, messageNumber]) as an idempotency key.
type RowWriter interface {
	HandleCreateChat(ctx context.Context, event models.CreateChatEvent) error
	HandleCreateMessage(ctx context.Context, event models.CreateMessageEvent) error
	HandleUpdateMessage(ctx context.Context, event models.UpdateMessageEvent) error
}

// DispatchEvent routes a decoded event to the matching RowWriter method
func DispatchEvent(ctx context.Context, w RowWriter, event models.Event) error {
	switch e := event.(type) {
	case models.CreateChatEvent:
		return w.HandleCreateChat(ctx, e)
	case models.CreateMessageEvent:
		return w.HandleCreateMessage(ctx, e)
	case models.UpdateMessageEvent:
		return w.HandleUpdateMessage(ctx, e)
	default:
		return fmt.Errorf("no row writer handler for %T", event)
	}
}

var (
	eventPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_publish_total",
			Help: "Event publish attempts partitioned by topic and result",
		},
		[]string{"topic", "result"},
	)

	eventPublishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "event_publish_duration_seconds",
			Help:    "Time until the broker confirmed an event",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"topic"},
	)
)

// NewEventPublisher connects the broker driver selected in cfg and wraps it with publish metrics
func NewEventPublisher(cfg config.BrokerConfig) (EventPublisher, error) {
	var (
		inner EventPublisher
		err   error
	)

	switch strings.ToLower(cfg.Driver) {
	case "", "amqp":
		inner, err = NewAMQPPublisher(cfg.AMQPURL)
	case "kafka":
		inner, err = NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaClientID, cfg.KafkaRetries)
	case "nats":
		inner, err = NewNATSPublisher(cfg.NATSURL, cfg.NATSStream)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBrokerDriver, cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	return NewInstrumentedPublisher(inner, cfg.PublishTimeout), nil
}

// InstrumentedPublisher bounds each publish by a timeout and records its outcome
type InstrumentedPublisher struct {
	inner   EventPublisher
	timeout time.Duration
}

func NewInstrumentedPublisher(inner EventPublisher, timeout time.Duration) *InstrumentedPublisher {
	return &InstrumentedPublisher{inner: inner, timeout: timeout}
}

func (p *InstrumentedPublisher) Publish(ctx context.Context, topic string, event models.Event) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	err := p.inner.Publish(ctx, topic, event)
	eventPublishDuration.WithLabelValues(topic).Observe(time.Since(start).Seconds())

	result := "confirmed"
	if err != nil {
		result = "failed"
	}
	eventPublishTotal.WithLabelValues(topic, result).Inc()
	return err
}

func (p *InstrumentedPublisher) Close() error {
	return p.inner.Close()
}

func encodeEvent(event models.Event) ([]byte, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", event.ID(), err)
	}
	return body, nil
}
