package redis

import (
	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

type RedisEventSubscriber struct {
	client  *redis.Client
	channel string
	log     logger.Logger
}

func NewRedisEventSubscriber(client *redis.Client, channel string, log logger.Logger) *RedisEventSubscriber {
	return &RedisEventSubscriber{
		client:  client,
		channel: channel,
		log:     log,
	}
}

// Subscribe blocks, passing each decoded notification to handler until ctx
// is done. Undecodable payloads and handler errors are logged and skipped.
func (r *RedisEventSubscriber) Subscribe(ctx context.Context, handler domain.NotificationHandler) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	// Wait for the subscription to be confirmed
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	ch := pubsub.Channel()

	r.log.Info("Subscribed to auction events", "channel", r.channel)

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			n, err := decodeNotification(msg.Payload)
			if err != nil {
				r.log.Error("Failed to parse event", "payload", msg.Payload, "error", err)
				continue
			}

			if err := handler(n); err != nil {
				r.log.Error("Failed to handle event", "event", n.Event, "auction_id", n.AuctionID, "error", err)
			}

		case <-ctx.Done():
			r.log.Info("Event subscriber stopped")
			return ctx.Err()
		}
	}
}

func decodeNotification(payload string) (*domain.Notification, error) {
	var n domain.Notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return nil, err
	}
	if n.Event == "" || n.AuctionID == "" {
		return nil, fmt.Errorf("incomplete notification: %s", payload)
	}
	return &n, nil
}
