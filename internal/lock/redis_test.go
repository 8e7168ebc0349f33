//go:build testutil

package lock

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisLocker(t *testing.T) {
	client := startRedis(t)
	locker := NewRedisLocker(client, 5*time.Second, zap.NewNop())
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "participant:1", "participant:2")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(waitCtx, "participant:2")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()

	unlock2, err := locker.Lock(ctx, "participant:2")
	require.NoError(t, err)
	unlock2()

	n, err := client.Exists(ctx, "lock:participant:1", "lock:participant:2").Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisLockerDoesNotReleaseForeignToken(t *testing.T) {
	client := startRedis(t)
	locker := NewRedisLocker(client, 5*time.Second, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "lock:participant:9", "someone-else", time.Minute).Err())
	locker.release([]string{"participant:9"}, "my-token")

	v, err := client.Get(ctx, "lock:participant:9").Result()
	require.NoError(t, err)
	assert.Equal(t, "someone-else", v)
}
