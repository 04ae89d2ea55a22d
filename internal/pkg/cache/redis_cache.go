package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/go-redis/redis/v8"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

// RedisCache 基于 Redis 的预览缓存, 可选 zstd 压缩渲染结果
type RedisCache struct {
	client   *redis.Client
	compress bool
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder
}

var _ PreviewCache = (*RedisCache)(nil)

// redisEntry 存入 Redis 的结构
type redisEntry struct {
	Data       []byte `json:"data"`
	MimeType   string `json:"mime_type"`
	IsImage    bool   `json:"is_image"`
	Compressed bool   `json:"compressed"`
}

func NewRedisCache(client *redis.Client, compress bool) (*RedisCache, error) {
	// EncodeAll/DecodeAll 可以并发调用
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &RedisCache{client: client, compress: compress, encoder: enc, decoder: dec}, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value *Rendition, expiration time.Duration) error {
	entry := redisEntry{
		Data:     value.Data,
		MimeType: value.MimeType,
		IsImage:  value.IsImage,
	}
	if r.compress {
		entry.Data = r.encoder.EncodeAll(value.Data, make([]byte, 0, len(value.Data)/2))
		entry.Compressed = true
	}

	data, err := json.Marshal(entry)
	if err != nil {
		logger.Error("Failed to marshal cache value", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("序列化缓存值失败: %w", err)
	}

	if err = r.client.Set(ctx, key, data, expiration).Err(); err != nil {
		logger.Error("Failed to set value in Redis", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("写入 Redis 失败: %w", err)
	}
	return nil
}

func (r *RedisCache) Get(ctx context.Context, key string) (*Rendition, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		logger.Error("Failed to get value from Redis", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("从 Redis 读取失败: %w", err)
	}

	var entry redisEntry
	if err = json.Unmarshal(data, &entry); err != nil {
		logger.Error("Failed to unmarshal cached value", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("反序列化缓存值失败: %w", err)
	}

	payload := entry.Data
	if entry.Compressed {
		payload, err = r.decoder.DecodeAll(entry.Data, nil)
		if err != nil {
			logger.Error("Failed to decompress cached value", zap.String("key", key), zap.Error(err))
			return nil, fmt.Errorf("解压缓存值失败: %w", err)
		}
	}

	return &Rendition{Data: payload, MimeType: entry.MimeType, IsImage: entry.IsImage}, nil
}

func (r *RedisCache) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		logger.Error("Failed to delete keys from Redis", zap.Strings("keys", keys), zap.Error(err))
		return fmt.Errorf("从 Redis 删除键失败: %w", err)
	}
	return nil
}
