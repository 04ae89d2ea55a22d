package setup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/3Eeeecho/go-fileshare/internal/config"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/storage"
)

// InitStorage 初始化存储服务并确保默认存储桶存在
func InitStorage(cfg *config.Config) (storage.StorageService, error) {
	svc, err := storage.NewStorageService(cfg)
	if err != nil {
		return nil, fmt.Errorf("初始化存储服务失败: %w", err)
	}
	logger.Info("存储服务已选择并初始化", zap.String("type", cfg.Storage.Type))

	// 为外部调用使用带超时的上下文
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	bucket := svc.DefaultBucket()
	exists, err := svc.IsBucketExist(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("检查存储桶存在性失败: %w", err)
	}
	if !exists {
		logger.Info("存储桶不存在，尝试创建...", zap.String("bucketName", bucket))
		if err := svc.MakeBucket(ctx, bucket); err != nil {
			return nil, fmt.Errorf("创建存储桶失败: %w", err)
		}
	} else {
		logger.Info("存储桶已存在", zap.String("bucketName", bucket))
	}
	return svc, nil
}
