// Package preview 渲染带接收人水印的分享预览, 渲染结果短时间缓存
package preview

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/pkg/cache"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/metrics"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/storage"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/watermark"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fileshare/internal/repositories"
	"github.com/3Eeeecho/go-fileshare/internal/services/share"
	"go.uber.org/zap"
)

// DefaultTTL 预览缓存默认有效期
const DefaultTTL = 60 * time.Second

// Renderer 按分享 token 渲染水印预览
type Renderer struct {
	shareRepo repositories.ShareRepository
	storage   storage.StorageService
	cache     cache.PreviewCache
	ttl       time.Duration
	clock     func() time.Time
}

func NewRenderer(shareRepo repositories.ShareRepository, storageService storage.StorageService, previewCache cache.PreviewCache, ttl time.Duration) *Renderer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Renderer{
		shareRepo: shareRepo,
		storage:   storageService,
		cache:     previewCache,
		ttl:       ttl,
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// Render 返回渲染结果以及是否来自缓存
// 缓存出错时退化为重新渲染
func (r *Renderer) Render(ctx context.Context, token string) (*cache.Rendition, bool, error) {
	key := cache.PreviewKey(token)
	cached, err := r.cache.Get(ctx, key)
	switch {
	case err == nil:
		metrics.PreviewCache.WithLabelValues("hit").Inc()
		return cached, true, nil
	case errors.Is(err, cache.ErrCacheMiss):
		metrics.PreviewCache.WithLabelValues("miss").Inc()
	default:
		metrics.PreviewCache.WithLabelValues("error").Inc()
		logger.Warn("Render: 读取预览缓存失败", zap.String("key", key), zap.Error(err))
	}

	now := r.clock()
	sh, err := r.shareRepo.FindByToken(ctx, token)
	if err != nil {
		return nil, false, err
	}
	if reason, ok := share.Availability(sh, now); !ok {
		return nil, false, share.Unavailable(reason)
	}

	data, err := storage.ReadAll(ctx, r.storage, sh.File.OssBucket, sh.File.OssKey)
	if err != nil {
		logger.Error("Render: 读取文件失败", zap.String("fileID", sh.FileID), zap.Error(err))
		return nil, false, fmt.Errorf("preview: %w: %v", xerr.ErrStorageError, err)
	}

	start := time.Now()
	out, err := watermark.Apply(data, watermark.Stamp{Email: sh.RecipientEmail, At: now})
	if err != nil {
		if errors.Is(err, watermark.ErrUnsupportedType) {
			return nil, false, fmt.Errorf("preview: %s: %w", watermark.Detect(data), xerr.ErrUnsupportedType)
		}
		logger.Error("Render: 水印渲染失败", zap.String("fileID", sh.FileID), zap.Error(err))
		return nil, false, fmt.Errorf("preview: render watermark: %w", err)
	}
	kind := "pdf"
	if out.IsImage {
		kind = "image"
	}
	metrics.PreviewRenderDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	rendition := &cache.Rendition{Data: out.Data, MimeType: out.MimeType, IsImage: out.IsImage}
	if err := r.cache.Set(ctx, key, rendition, r.ttl); err != nil {
		logger.Warn("Render: 写入预览缓存失败", zap.String("key", key), zap.Error(err))
	}
	return rendition, false, nil
}

// Invalidate 删除 token 对应的缓存
func (r *Renderer) Invalidate(ctx context.Context, token string) {
	if err := r.cache.Del(ctx, cache.PreviewKey(token)); err != nil {
		logger.Warn("Invalidate: 删除预览缓存失败", zap.String("token", token), zap.Error(err))
	}
}
