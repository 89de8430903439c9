package testing

import (
	"context"
	"net"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
)

// GetRedisClientAndCtx returns a client against a locally running redis,
// for tests exercising the real pub/sub path. Skips the test when redis
// is not reachable.
func GetRedisClientAndCtx(t *testing.T) (context.Context, *redis.Client) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	redisHost := os.Getenv("REDIS_HOST")
	if redisHost == "" {
		redisHost = "localhost"
	}
	redisPort := os.Getenv("REDIS_PORT")
	if redisPort == "" {
		redisPort = "6379"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: net.JoinHostPort(redisHost, redisPort),
		DB:   0, // use default DB
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not reachable on %s:%s, skipping: %s", redisHost, redisPort, err)
	}

	require.NotNil(t, rdb)
	return ctx, rdb
}
