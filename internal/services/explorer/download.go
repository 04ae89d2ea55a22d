package explorer

import (
	"context"
	"errors"
	"fmt"

	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/storage"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fileshare/internal/services/access"
	"go.uber.org/zap"
)

// Download 决策 -> 打开 Blob -> 条件自增下载计数 -> 写访问日志
// 先打开 Blob 再计数, 存储故障不会消耗下载次数
func (s *fileService) Download(ctx context.Context, fileID string, rc access.RequestContext) (*DownloadResult, error) {
	if rc.Now.IsZero() {
		rc.Now = s.clock()
	}
	file, err := s.fileRepo.FindByID(ctx, fileID)
	if err != nil {
		if !errors.Is(err, xerr.ErrFileNotFound) {
			logger.Error("Download: find file failed", zap.String("fileID", fileID), zap.Error(err))
			return nil, fmt.Errorf("file service: %w", xerr.ErrDatabaseError)
		}
		return nil, err
	}

	decision := access.Observe(access.Decide(file, rc))
	if !decision.Allowed {
		s.deny(ctx, fileID, rc, decision.Reason)
		return nil, decision.Err()
	}

	obj, err := s.storage.GetObject(ctx, file.OssBucket, file.OssKey)
	if err != nil {
		logger.Error("Download: open blob failed", zap.String("fileID", fileID), zap.String("ossKey", file.OssKey), zap.Error(err))
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, fmt.Errorf("file service: blob missing: %w", xerr.ErrStorageError)
		}
		return nil, fmt.Errorf("file service: %w: %v", xerr.ErrStorageError, err)
	}

	// 所有者下载只审计, 不消耗下载次数
	if !decision.OwnerBypass {
		ok, err := s.fileRepo.IncrementDownloadCount(ctx, fileID, rc.Now)
		if err != nil {
			obj.Reader.Close()
			logger.Error("Download: increment download count failed", zap.String("fileID", fileID), zap.Error(err))
			return nil, fmt.Errorf("file service: %w", xerr.ErrDatabaseError)
		}
		if !ok {
			// 决策之后被并发请求用完了额度或刚好过期
			obj.Reader.Close()
			reason := access.ReasonLimitExceeded
			if file.IsExpired(rc.Now) {
				reason = access.ReasonExpired
			}
			s.deny(ctx, fileID, rc, reason)
			return nil, xerr.Denied(string(reason))
		}
		file.DownloadCount++
	}

	_ = s.audit.RecordSuccess(ctx, fileID, rc, nil)
	logger.Info("Download success", zap.String("fileID", fileID), zap.Bool("owner", decision.OwnerBypass))
	return &DownloadResult{File: file, Reader: obj.Reader, Size: obj.Size}, nil
}

func (s *fileService) deny(ctx context.Context, fileID string, rc access.RequestContext, reason access.Reason) {
	logger.Warn("Download denied", zap.String("fileID", fileID), zap.String("reason", string(reason)), zap.String("ip", rc.ClientIP))
	_ = s.audit.RecordFailure(ctx, fileID, rc, reason, nil)
}
