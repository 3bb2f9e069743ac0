package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/aman-churiwal/ringhub-gateway/internal/storage"
	"github.com/stretchr/testify/require"
)

func TestRedisCounterStoreBasics(t *testing.T) {
	t.Skip("live test, need redis running locally")

	client, err := storage.NewRedis("localhost:6379", "", 15)
	require.NoError(t, err)
	defer client.Close()

	store := NewRedisCounterStore(client, 7*24*time.Hour)
	_, err = store.PruneOlderThan(context.Background(), testNow.Add(time.Hour))
	require.NoError(t, err)

	testCounterStoreBasics(t, store)
}

func TestRedisActionKey(t *testing.T) {
	require.Equal(t, "ratelimit:actions:did:plc:abc:fork", redisActionKey("did:plc:abc", "fork"))
}
