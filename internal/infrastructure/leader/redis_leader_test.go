package leader

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLeaderElection(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	defer client.Close()
	ctx := context.Background()
	require.NoError(t, client.Del(ctx, "test_leader").Err())

	first := NewRedisLeaderElection(client, "test_leader", 3*time.Second)
	second := NewRedisLeaderElection(client, "test_leader", 3*time.Second)

	ok, err := first.BecomeLeader(ctx, "one")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.BecomeLeader(ctx, "two")
	require.NoError(t, err)
	assert.False(t, ok)

	// heartbeat keeps the lease past its ttl
	time.Sleep(4 * time.Second)
	ok, err = first.IsLeader(ctx, "one")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, second.ReleaseLeadership(ctx, "two"))
	ok, err = first.IsLeader(ctx, "one")
	require.NoError(t, err)
	assert.True(t, ok, "releasing someone else's lease is a no-op")

	require.NoError(t, first.ReleaseLeadership(ctx, "one"))
	ok, err = second.BecomeLeader(ctx, "two")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, second.ReleaseLeadership(ctx, "two"))
}
