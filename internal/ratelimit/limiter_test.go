package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "rate_limit:login:10.0.0.1", Key("login", "10.0.0.1"))
}

func TestNop(t *testing.T) {
	ok, err := Nop{}.Allow(context.Background(), "login", "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)
}

// needs a reachable server in REDIS_TEST_ADDR
func TestLimiter_Allow(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()
	require.NoError(t, client.Ping(ctx).Err())

	l := NewLimiter(client, map[string]Rule{"login": {Limit: 2, Window: time.Minute}})
	ip := uuid.NewString()
	t.Cleanup(func() { _ = l.Reset(ctx, "login", ip) })

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "login", ip)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := l.Allow(ctx, "login", ip)
	require.NoError(t, err)
	assert.False(t, ok)

	ttl, err := client.TTL(ctx, Key("login", ip)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
