package cache

import (
	"context"
	"errors"
	"time"
)

var ErrCacheMiss error = errors.New("缓存未命中,key不存在")

// Rendition 水印预览的渲染结果, 写入后不再修改
type Rendition struct {
	Data     []byte `json:"data"`
	MimeType string `json:"mime_type"`
	IsImage  bool   `json:"is_image"`
}

// PreviewCache 预览缓存通用接口
// 缓存只是性能优化, 任何实现出错时调用方都应当退化为重新渲染
type PreviewCache interface {
	// Get 未命中时返回 ErrCacheMiss
	Get(ctx context.Context, key string) (*Rendition, error)
	Set(ctx context.Context, key string, value *Rendition, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// PreviewKey 预览缓存键
func PreviewKey(token string) string {
	return "preview:" + token
}
