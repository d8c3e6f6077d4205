package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/amirphl/chat-sequencer/models"
	"github.com/amirphl/chat-sequencer/utils"
)

var ErrPublishNacked = errors.New("broker rejected the event")

// AMQPPublisher publishes to durable queues on the default exchange with publisher confirms
type AMQPPublisher struct {
	url string

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	declared map[string]bool
}

// NewAMQPPublisher dials url and puts the channel in confirm mode
func NewAMQPPublisher(url string) (*AMQPPublisher, error) {
	p := &AMQPPublisher{url: url}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *AMQPPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	p.conn = conn
	p.ch = ch
	p.declared = make(map[string]bool)
	return nil
}

// declareTopology sets up <topic>, its fanout <topic>.dlx and the bound <topic>.dlq
func (p *AMQPPublisher) declareTopology(topic string) error {
	if p.declared[topic] {
		return nil
	}

	dlx := topic + ".dlx"
	dlq := topic + ".dlq"

	if err := p.ch.ExchangeDeclare(dlx, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", dlx, err)
	}
	if _, err := p.ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", dlq, err)
	}
	if err := p.ch.QueueBind(dlq, "", dlx, false, nil); err != nil {
		return fmt.Errorf("bind %s to %s: %w", dlq, dlx, err)
	}
	args := amqp.Table{"x-dead-letter-exchange": dlx}
	if _, err := p.ch.QueueDeclare(topic, true, false, false, false, args); err != nil {
		return fmt.Errorf("declare queue %s: %w", topic, err)
	}

	p.declared[topic] = true
	return nil
}

// reset closes whatever is left of the current connection. Caller holds mu.
func (p *AMQPPublisher) reset() {
	if p.conn != nil && !p.conn.IsClosed() {
		if err := p.conn.Close(); err != nil {
			log.Printf("amqp: failed to close stale connection: %v", err)
		}
	}
	p.conn = nil
	p.ch = nil
}

// healthy reports whether both the connection and its channel are still open. Caller holds mu.
func (p *AMQPPublisher) healthy() bool {
	return p.conn != nil && !p.conn.IsClosed() && p.ch != nil && !p.ch.IsClosed()
}

// newPublishing builds the persistent JSON message for event
func newPublishing(event models.Event, body []byte) amqp.Publishing {
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID().String(),
		Timestamp:    utils.UTCNow(),
		Body:         body,
	}
}

func (p *AMQPPublisher) send(ctx context.Context, topic string, event models.Event, body []byte) (*amqp.DeferredConfirmation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.healthy() {
		log.Printf("amqp: connection or channel closed, redialing")
		p.reset()
		if err := p.connect(); err != nil {
			return nil, err
		}
	}

	if err := p.declareTopology(topic); err != nil {
		return nil, err
	}

	return p.ch.PublishWithDeferredConfirmWithContext(ctx, "", topic, false, false, newPublishing(event, body))
}

type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

// awaitConfirm blocks until the broker acks or nacks the publish
func awaitConfirm(ctx context.Context, dc confirmation, topic string, event models.Event) error {
	acked, err := dc.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("await confirm for %s on %s: %w", event.ID(), topic, err)
	}
	if !acked {
		return fmt.Errorf("%w: %s on %s", ErrPublishNacked, event.ID(), topic)
	}
	return nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, topic string, event models.Event) error {
	body, err := encodeEvent(event)
	if err != nil {
		return err
	}

	dc, err := p.send(ctx, topic, event, body)
	if errors.Is(err, amqp.ErrClosed) {
		p.mu.Lock()
		p.reset()
		p.mu.Unlock()
		dc, err = p.send(ctx, topic, event, body)
	}
	if err != nil {
		return fmt.Errorf("publish %s to %s: %w", event.ID(), topic, err)
	}

	return awaitConfirm(ctx, dc, topic, event)
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil || p.conn.IsClosed() {
		return nil
	}
	return p.conn.Close()
}
