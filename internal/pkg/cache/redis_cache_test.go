package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisCache(t *testing.T, compress bool) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c, err := NewRedisCache(client, compress)
	require.NoError(t, err)
	return c, mr
}

func TestRedisCache_CompressedRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t, true)

	payload := bytes.Repeat([]byte("watermarked page "), 512)
	r := &Rendition{Data: payload, MimeType: "application/pdf"}
	require.NoError(t, c.Set(ctx, PreviewKey("tok"), r, time.Minute))

	raw, err := mr.Get(PreviewKey("tok"))
	require.NoError(t, err)
	var stored redisEntry
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.True(t, stored.Compressed)
	assert.Less(t, len(stored.Data), len(payload))

	got, err := c.Get(ctx, PreviewKey("tok"))
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestRedisCache_Uncompressed(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t, false)

	r := &Rendition{Data: []byte("png bytes"), MimeType: "image/png", IsImage: true}
	require.NoError(t, c.Set(ctx, "k", r, time.Minute))

	raw, err := mr.Get("k")
	require.NoError(t, err)
	var stored redisEntry
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.False(t, stored.Compressed)
	assert.Equal(t, r.Data, stored.Data)

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestRedisCache_MissExpiryAndDel(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t, true)

	_, err := c.Get(ctx, PreviewKey("missing"))
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "ttl", &Rendition{Data: []byte("x")}, time.Minute))
	mr.FastForward(61 * time.Second)
	_, err = c.Get(ctx, "ttl")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "del", &Rendition{Data: []byte("y")}, time.Minute))
	require.NoError(t, c.Del(ctx, "del"))
	_, err = c.Get(ctx, "del")
	assert.ErrorIs(t, err, ErrCacheMiss)

	assert.NoError(t, c.Del(ctx))
}

func TestRedisCache_CorruptEntry(t *testing.T) {
	c, mr := newRedisCache(t, true)
	require.NoError(t, mr.Set("bad", "not json"))

	_, err := c.Get(context.Background(), "bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}
