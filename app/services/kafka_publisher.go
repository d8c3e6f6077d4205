package services

import (
	"context"
	"fmt"
	"time"

	"github.com/Shopify/sarama"

	"github.com/amirphl/chat-sequencer/models"
)

// KafkaPublisher publishes through a sync producer; the parent member is the message key
type KafkaPublisher struct {
	producer sarama.SyncProducer
}

func newKafkaConfig(clientID string, retries int) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_8_0_0
	if clientID != "" {
		cfg.ClientID = clientID
	}

	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	if retries <= 0 {
		retries = 1
	}
	cfg.Producer.Retry.Max = retries
	// keeps events of one parent on one partition
	cfg.Producer.Partitioner = sarama.NewHashPartitioner

	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.ReadTimeout = 30 * time.Second
	cfg.Net.WriteTimeout = 30 * time.Second
	return cfg
}

func NewKafkaPublisher(brokers []string, clientID string, retries int) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers missing")
	}
	producer, err := sarama.NewSyncProducer(brokers, newKafkaConfig(clientID, retries))
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return &KafkaPublisher{producer: producer}, nil
}

// NewKafkaPublisherWithProducer wraps an existing producer
func NewKafkaPublisherWithProducer(producer sarama.SyncProducer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic string, event models.Event) error {
	body, err := encodeEvent(event)
	if err != nil {
		return err
	}

	msg := newKafkaMessage(topic, event, body)

	// SendMessage has no context; a late ack after cancellation is a duplicate the row writer absorbs
	done := make(chan error, 1)
	go func() {
		_, _, err := p.producer.SendMessage(msg)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("publish %s to %s: %w", event.ID(), topic, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publish %s to %s: %w", event.ID(), topic, ctx.Err())
	}
}

func newKafkaMessage(topic string, event models.Event, body []byte) *sarama.ProducerMessage {
	return &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(event.PartitionKey()),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("message-id"), Value: []byte(event.ID().String())},
			{Key: []byte("content-type"), Value: []byte("application/json")},
		},
	}
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
