package leader

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	releaseScript = `
        if redis.call("GET", KEYS[1]) == ARGV[1] then
            return redis.call("DEL", KEYS[1])
        else
            return 0
        end
    `
	// Extend TTL only while we still hold the key
	renewScript = `
        if redis.call("GET", KEYS[1]) == ARGV[1] then
            return redis.call("PEXPIRE", KEYS[1], ARGV[2])
        else
            return 0
        end
    `
)

// RedisLeaderElection picks one scheduler instance with SET NX and keeps the
// lease alive from a heartbeat goroutine.
type RedisLeaderElection struct {
	client *redis.Client
	key    string
	ttl    time.Duration

	mu        sync.Mutex
	heartbeat map[string]chan struct{}
}

func NewRedisLeaderElection(client *redis.Client, key string, ttl time.Duration) *RedisLeaderElection {
	return &RedisLeaderElection{
		client:    client,
		key:       key,
		ttl:       ttl,
		heartbeat: make(map[string]chan struct{}),
	}
}

func (r *RedisLeaderElection) BecomeLeader(ctx context.Context, instanceID string) (bool, error) {
	result, err := r.client.SetNX(ctx, r.key, instanceID, r.ttl).Result()
	if err != nil {
		return false, err
	}

	if result {
		r.startHeartbeat(instanceID)
	}

	return result, nil
}

func (r *RedisLeaderElection) IsLeader(ctx context.Context, instanceID string) (bool, error) {
	currentLeader, err := r.client.Get(ctx, r.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}

	return currentLeader == instanceID, nil
}

func (r *RedisLeaderElection) ReleaseLeadership(ctx context.Context, instanceID string) error {
	r.stopHeartbeat(instanceID)
	return r.client.Eval(ctx, releaseScript, []string{r.key}, instanceID).Err()
}

func (r *RedisLeaderElection) startHeartbeat(instanceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, running := r.heartbeat[instanceID]; running {
		return
	}
	stop := make(chan struct{})
	r.heartbeat[instanceID] = stop
	go r.maintainLeadership(instanceID, stop)
}

func (r *RedisLeaderElection) stopHeartbeat(instanceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if stop, ok := r.heartbeat[instanceID]; ok {
		close(stop)
		delete(r.heartbeat, instanceID)
	}
}

func (r *RedisLeaderElection) maintainLeadership(instanceID string, stop chan struct{}) {
	ticker := time.NewTicker(r.ttl / 3) // Refresh at 1/3 of TTL
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		result, err := r.client.Eval(ctx, renewScript, []string{r.key},
			instanceID, r.ttl.Milliseconds()).Int64()
		cancel()

		if err != nil || result == 0 {
			// Lost leadership; the next BecomeLeader starts a fresh heartbeat
			r.mu.Lock()
			if r.heartbeat[instanceID] == stop {
				delete(r.heartbeat, instanceID)
			}
			r.mu.Unlock()
			return
		}
	}
}
