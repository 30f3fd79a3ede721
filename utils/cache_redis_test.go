package utils

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	return mr, rc
}

func TestCacheRoundTripInRedis(t *testing.T) {
	ctx := context.Background()
	mr, rc := newMiniRedis(t)
	c := NewCache(rc, 5*time.Minute)
	require.True(t, c.Enabled())

	_, ok := c.GetBytes(ctx, "cache:pact:detail:1")
	assert.False(t, ok)

	c.SetJSON(ctx, "cache:pact:detail:1", map[string]string{"title": "run"})
	b, ok := c.GetBytes(ctx, "cache:pact:detail:1")
	require.True(t, ok)
	assert.JSONEq(t, `{"title":"run"}`, string(b))
	assert.Equal(t, 5*time.Minute, mr.TTL("cache:pact:detail:1"))

	require.NoError(t, c.Delete(ctx, "cache:pact:detail:1", "cache:missing"))
	assert.False(t, mr.Exists("cache:pact:detail:1"))
	_, ok = c.GetBytes(ctx, "cache:pact:detail:1")
	assert.False(t, ok)
}

func TestCacheDefaultTTL(t *testing.T) {
	mr, rc := newMiniRedis(t)
	c := NewCache(rc, 0)
	c.SetBytes(context.Background(), "k", []byte("v"))
	assert.Equal(t, time.Hour, mr.TTL("k"))
}

func TestCacheInvalidateByPrefix(t *testing.T) {
	ctx := context.Background()
	mr, rc := newMiniRedis(t)
	c := NewCache(rc, time.Minute)

	c.SetBytes(ctx, "cache:feed:recent:20", []byte("a"))
	c.SetBytes(ctx, "cache:feed:recent:50", []byte("b"))
	c.SetBytes(ctx, "cache:pact:detail:3", []byte("c"))
	c.SetBytes(ctx, "other:feed:x", []byte("d"))

	require.NoError(t, c.InvalidateByPrefix(ctx, "cache:feed:"))
	assert.False(t, mr.Exists("cache:feed:recent:20"))
	assert.False(t, mr.Exists("cache:feed:recent:50"))
	assert.True(t, mr.Exists("cache:pact:detail:3"))
	assert.True(t, mr.Exists("other:feed:x"))

	require.NoError(t, c.InvalidateByPrefix(ctx, "cache:feed:"), "nothing left to delete")
}

func TestCacheFailsWhenRedisDown(t *testing.T) {
	ctx := context.Background()
	mr, rc := newMiniRedis(t)
	c := NewCache(rc, time.Minute)
	mr.Close()

	c.SetBytes(ctx, "k", []byte("v"))
	_, ok := c.GetBytes(ctx, "k")
	assert.False(t, ok)
	assert.Error(t, c.Delete(ctx, "k"))
	assert.Error(t, c.InvalidateByPrefix(ctx, "cache:"))
}

func TestTTLStoreInRedis(t *testing.T) {
	ctx := context.Background()
	mr, rc := newMiniRedis(t)
	s := NewTTLStore(rc, "oauth:state:")

	assert.False(t, s.Has(ctx, "abc"))
	require.NoError(t, s.Put(ctx, "abc", time.Minute))
	assert.True(t, mr.Exists("oauth:state:abc"))
	assert.Equal(t, time.Minute, mr.TTL("oauth:state:abc"))
	assert.True(t, s.Has(ctx, "abc"))

	assert.True(t, s.Take(ctx, "abc"))
	assert.False(t, s.Take(ctx, "abc"), "take is single use")
	assert.False(t, mr.Exists("oauth:state:abc"))

	require.NoError(t, s.Put(ctx, "short", time.Second))
	mr.FastForward(2 * time.Second)
	assert.False(t, s.Has(ctx, "short"))
	assert.False(t, s.Take(ctx, "short"))

	require.NoError(t, s.Put(ctx, "ignored", 0))
	assert.False(t, mr.Exists("oauth:state:ignored"))
}
