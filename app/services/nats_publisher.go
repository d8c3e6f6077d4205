package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/amirphl/chat-sequencer/models"
	"github.com/amirphl/chat-sequencer/utils"
)

// NATSPublisher publishes to a JetStream stream covering the event subjects
type NATSPublisher struct {
	nc *nats.Conn
	js nats.JetStreamContext
}

// StreamConfig describes the file-backed stream holding every event subject
func StreamConfig(stream string) *nats.StreamConfig {
	return &nats.StreamConfig{
		Name:     stream,
		Subjects: []string{utils.TopicCreateChats, utils.TopicCreateMessages, utils.TopicUpdateMessages},
		Storage:  nats.FileStorage,
		// matches the broker-side dedupe window for nats.MsgId
		Duplicates: 2 * time.Minute,
	}
}

func NewNATSPublisher(url, stream string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("chat-sequencer"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(500*time.Millisecond),
		nats.Timeout(3*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("init jetstream: %w", err)
	}

	if _, err := js.AddStream(StreamConfig(stream)); err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		nc.Close()
		return nil, fmt.Errorf("add stream %s: %w", stream, err)
	}

	return &NATSPublisher{nc: nc, js: js}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, topic string, event models.Event) error {
	body, err := encodeEvent(event)
	if err != nil {
		return err
	}

	msg := nats.NewMsg(topic)
	msg.Data = body
	msg.Header.Set("Content-Type", "application/json")

	if _, err := p.js.PublishMsg(msg, nats.MsgId(event.ID().String()), nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish %s to %s: %w", event.ID(), topic, err)
	}
	return nil
}

func (p *NATSPublisher) Close() error {
	return p.nc.Drain()
}
