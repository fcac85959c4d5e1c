// Package notify provides delivery channel implementations for the
// notification dispatcher.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/vendorlane/api/internal/services"
)

// PubSubNotifier publishes business events to a Pub/Sub topic, serving as
// the real-time notification channel.
type PubSubNotifier struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubNotifier constructs a Pub/Sub backed real-time notifier.
func NewPubSubNotifier(topic *pubsub.Topic) (*PubSubNotifier, error) {
	if topic == nil {
		return nil, errors.New("pubsub notifier: topic is required")
	}
	return &PubSubNotifier{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// Notify publishes the event and waits for the broker's acknowledgement so
// callers can distinguish delivered from undeliverable.
func (p *PubSubNotifier) Notify(ctx context.Context, event services.NotificationEvent) error {
	if p == nil || p.topic == nil {
		return services.ErrRealTimeUnavailable
	}

	data, err := p.marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "event", event.Event)
	setAttr(attrs, "clientId", event.ClientID)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
