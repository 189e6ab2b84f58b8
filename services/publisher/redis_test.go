package publisher

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// This test requires a running Redis instance
// If Redis is not available, the test will be skipped
func TestRedisPublisher(t *testing.T) {
	ctx := context.Background()
	publisher := NewRedisPublisher("localhost:6379", 0, "test_carlistings", 1, 5)
	defer publisher.Close()

	if err := publisher.Ping(ctx); err != nil {
		t.Skip("Redis is not available, skipping test")
	}

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	stream := publisher.StreamName(0)
	require.NoError(t, client.Del(ctx, stream).Err())
	defer client.Del(ctx, stream)

	require.NoError(t, publisher.Publish(ctx, "b64_listing", []byte("test_message")))

	messages, err := client.XRange(ctx, stream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, messages, 1)
	// The message should be base64 encoded
	assert.Equal(t, "dGVzdF9tZXNzYWdl", messages[0].Values["b64_listing"])

	for i := 0; i < 10; i++ {
		require.NoError(t, publisher.Publish(ctx, "b64_listing", []byte("more")))
	}
	require.NoError(t, publisher.TrimStreams(ctx))

	length, err := client.XLen(ctx, stream).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(5), length)
}

func TestStreamName(t *testing.T) {
	p := NewRedisPublisher("localhost:6379", 0, "carlistings", 0, 0)
	defer p.Close()

	assert.Equal(t, "carlistings:0", p.StreamName(0))
	assert.Equal(t, 1, p.streamCount, "at least one stream")
	assert.NoError(t, p.TrimStreams(context.Background()), "no maximum length means no trim")
}
