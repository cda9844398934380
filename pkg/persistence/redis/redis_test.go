package redis

import (
	"context"
	"os"
	"testing"

	"github.com/clemsos/safe-docs/pkg/persistence"
	"github.com/clemsos/safe-docs/pkg/persistence/persistenceTest"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var _ persistence.IBlobPersistence = (*RedisPersistence)(nil)

// getTestRedisAddress uses REDIS_TEST_ADDRESS if set, otherwise localhost:6379
func getTestRedisAddress() string {
	if addr := os.Getenv("REDIS_TEST_ADDRESS"); addr != "" {
		return addr
	}
	return "localhost:6379"
}

// requireRedis opens a store under a unique key prefix on DB 15, skipping the test
// when no Redis server is reachable.
func requireRedis(t *testing.T) *RedisPersistence {
	t.Helper()

	prefix := "test:" + uuid.NewString() + ":"
	rp, err := NewRedisPersistence(&RedisConfig{
		Address:   getTestRedisAddress(),
		DB:        15,
		KeyPrefix: prefix,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Skipf("Redis not available at %s: %v", getTestRedisAddress(), err)
	}

	t.Cleanup(func() {
		_ = rp.Close()

		cleaner := redis.NewClient(&redis.Options{Addr: getTestRedisAddress(), DB: 15})
		defer func() { _ = cleaner.Close() }()

		ctx := context.Background()
		keys, err := cleaner.Keys(ctx, prefix+"*").Result()
		if err == nil && len(keys) > 0 {
			cleaner.Del(ctx, keys...)
		}
	})
	return rp
}

func TestRedisPersistence(t *testing.T) {
	persistenceTest.RunConformanceTests(t, func(t *testing.T) persistence.IBlobPersistence {
		return requireRedis(t)
	})
}

func TestNewRedisPersistence_InvalidConfig(t *testing.T) {
	_, err := NewRedisPersistence(nil, zaptest.NewLogger(t))
	require.Error(t, err)

	_, err = NewRedisPersistence(&RedisConfig{}, zaptest.NewLogger(t))
	require.Error(t, err)
}
