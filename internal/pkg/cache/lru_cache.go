package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// LRUCache 进程内预览缓存, 每个实例独立, 条目在 ttl 后自动过期
// expirable.LRU 的 TTL 在构造时固定, Set 的 expiration 参数被忽略
type LRUCache struct {
	cache *expirable.LRU[string, *Rendition]
}

var _ PreviewCache = (*LRUCache)(nil)

func NewLRUCache(maxEntries int, ttl time.Duration) *LRUCache {
	return &LRUCache{cache: expirable.NewLRU[string, *Rendition](maxEntries, nil, ttl)}
}

func (c *LRUCache) Get(ctx context.Context, key string) (*Rendition, error) {
	val, ok := c.cache.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	return val, nil
}

func (c *LRUCache) Set(ctx context.Context, key string, value *Rendition, expiration time.Duration) error {
	c.cache.Add(key, value)
	return nil
}

func (c *LRUCache) Del(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		c.cache.Remove(k)
	}
	return nil
}

// Len 当前条目数
func (c *LRUCache) Len() int {
	return c.cache.Len()
}
