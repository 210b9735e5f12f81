package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"
)

// PubSubVariantPublisher publishes variant lifecycle events to a Pub/Sub topic.
type PubSubVariantPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubVariantPublisher constructs a Pub/Sub backed variant event publisher.
func NewPubSubVariantPublisher(topic *pubsub.Topic) (*PubSubVariantPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub variant publisher: topic is required")
	}
	return &PubSubVariantPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// Publish enqueues a variant event on the configured topic. The event name
// rides along as a message attribute so subscribers can filter without
// decoding payloads.
func (p *PubSubVariantPublisher) Publish(ctx context.Context, event string, payload map[string]any) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub variant publisher: not initialised")
	}
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("pubsub variant publisher: event name is required")
	}

	data, err := p.marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal variant event: %w", err)
	}

	attrs := map[string]string{"event": event}
	if parentID, ok := payload["parentId"].(string); ok && strings.TrimSpace(parentID) != "" {
		attrs["parentId"] = parentID
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish variant event: %w", err)
	}
	return nil
}
