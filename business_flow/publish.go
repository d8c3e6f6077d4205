package businessflow

import (
	"context"
	"fmt"
	"log"

	"github.com/amirphl/chat-sequencer/app/services"
	"github.com/amirphl/chat-sequencer/models"
)

// eventEmitter applies the publish policy shared by the chat and message flows
type eventEmitter struct {
	publisher   services.EventPublisher
	mustSucceed bool
}

// emit returns an error only when publishing must succeed; otherwise failures are logged and counted
func (e eventEmitter) emit(ctx context.Context, topic string, event models.Event) error {
	err := e.publisher.Publish(ctx, topic, event)
	if err == nil {
		return nil
	}

	if e.mustSucceed {
		log.Printf("publish: %s event %s not confirmed (request %s): %v", topic, event.ID(), requestID(ctx), err)
		return NewBusinessErrorf("PUBLISH_FAILED", "%s event was not confirmed", fmt.Errorf("%w: %w", ErrPublishFailed, err), topic)
	}

	eventPublishFailuresTotal.WithLabelValues(topic).Inc()
	log.Printf("publish: dropping unconfirmed %s event %s (request %s): %v", topic, event.ID(), requestID(ctx), err)
	return nil
}
