package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUCache_SetGetDel(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache(4, time.Minute)

	_, err := c.Get(ctx, PreviewKey("missing"))
	assert.ErrorIs(t, err, ErrCacheMiss)

	r := &Rendition{Data: []byte("png"), MimeType: "image/png", IsImage: true}
	require.NoError(t, c.Set(ctx, PreviewKey("tok"), r, time.Minute))

	got, err := c.Get(ctx, PreviewKey("tok"))
	require.NoError(t, err)
	assert.Equal(t, r, got)

	require.NoError(t, c.Del(ctx, PreviewKey("tok")))
	_, err = c.Get(ctx, PreviewKey("tok"))
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestLRUCache_Expires(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache(4, 20*time.Millisecond)
	require.NoError(t, c.Set(ctx, "k", &Rendition{Data: []byte("x")}, 0))

	assert.Eventually(t, func() bool {
		_, err := c.Get(ctx, "k")
		return err == ErrCacheMiss
	}, time.Second, 10*time.Millisecond)
}

func TestLRUCache_EvictsOldest(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache(2, time.Minute)
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, c.Set(ctx, k, &Rendition{Data: []byte(k)}, time.Minute))
	}
	assert.Equal(t, 2, c.Len())
	_, err := c.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestPreviewKey(t *testing.T) {
	assert.Equal(t, "preview:abc", PreviewKey("abc"))
}
