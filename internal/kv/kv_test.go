package kv

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "role")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Set(ctx, "role", "admin"))
	require.NoError(t, store.Set(ctx, "isGuest", "false"))
	value, ok, err := store.Get(ctx, "role")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "admin", value)

	require.NoError(t, store.Delete(ctx, "role", "isGuest", "never-set"))
	_, ok, err = store.Get(ctx, "role")
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, store.Delete(ctx))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestRedisStore(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedis(client, "schoolinfo")
	exerciseStore(t, store)

	require.NoError(t, store.Set(context.Background(), "session:a:role", "student"))
	raw, err := server.Get("schoolinfo:session:a:role")
	require.NoError(t, err)
	require.Equal(t, "student", raw)
}

func TestRedisStoreReportsFailures(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	server.Close()

	store := NewRedis(client, "")
	_, _, err := store.Get(context.Background(), "role")
	require.Error(t, err)
	require.Error(t, store.Set(context.Background(), "role", "admin"))
}
