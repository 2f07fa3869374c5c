package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"payout-settler/pkg/apperror"

	goredis "github.com/redis/go-redis/v9"
)

// EventPublisher implements ports.EventPublisher over Redis PUBLISH.
// Delivery is at-most-once: nobody listening means the event is dropped.
type EventPublisher struct {
	client *goredis.Client
}

// NewEventPublisher creates a new EventPublisher.
func NewEventPublisher(client *goredis.Client) *EventPublisher {
	return &EventPublisher{client: client}
}

// Publish JSON-encodes event onto topic.
func (p *EventPublisher) Publish(ctx context.Context, topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return apperror.ErrPublishFailure(fmt.Errorf("marshal event: %w", err))
	}
	if err := p.client.Publish(ctx, topic, payload).Err(); err != nil {
		return apperror.ErrPublishFailure(fmt.Errorf("redis publish %s: %w", topic, err))
	}
	return nil
}
