package redis

import (
	"auction-engine/internal/domain"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStateCache mirrors auction status so the bid path can turn away bids
// on closed auctions without touching the database. It is only ever a hint.
type RedisStateCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStateCache(client *redis.Client, ttl time.Duration) *RedisStateCache {
	return &RedisStateCache{client: client, ttl: ttl}
}

func statusKey(auctionID string) string {
	return fmt.Sprintf("auction:%s:status", auctionID)
}

func (r *RedisStateCache) SetAuctionStatus(ctx context.Context, auctionID string, status domain.AuctionStatus) error {
	return r.client.Set(ctx, statusKey(auctionID), string(status), r.ttl).Err()
}

// GetAuctionStatus reports known=false on a cache miss or an unrecognised value.
func (r *RedisStateCache) GetAuctionStatus(ctx context.Context, auctionID string) (domain.AuctionStatus, bool, error) {
	result, err := r.client.Get(ctx, statusKey(auctionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}

	status := domain.AuctionStatus(result)
	if !status.IsValid() {
		return "", false, nil
	}
	return status, true, nil
}
