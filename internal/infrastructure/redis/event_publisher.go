package redis

import (
	"auction-engine/internal/domain"
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// EventPublisherImpl delivers notifications by publishing them as JSON on a
// Redis channel. The notification service is the subscriber.
type EventPublisherImpl struct {
	client  *redis.Client
	channel string
}

func NewEventPublisher(client *redis.Client, channel string) *EventPublisherImpl {
	return &EventPublisherImpl{client: client, channel: channel}
}

func (r *EventPublisherImpl) Notify(ctx context.Context, n domain.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	return r.client.Publish(ctx, r.channel, payload).Err()
}
