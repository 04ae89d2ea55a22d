// Package audit 负责追加与查询文件访问日志
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/models"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fileshare/internal/repositories"
	"github.com/3Eeeecho/go-fileshare/internal/services/access"
	"go.uber.org/zap"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// EventIndexer 审计事件的镜像目标, 例如 Elasticsearch
type EventIndexer interface {
	IndexAccessEvent(ctx context.Context, event models.AccessEvent) error
}

type Service interface {
	RecordSuccess(ctx context.Context, fileID string, rc access.RequestContext, email *string) error
	RecordFailure(ctx context.Context, fileID string, rc access.RequestContext, reason access.Reason, email *string) error
	// 以下查询仅文件所有者可用, 按访问时间倒序分页
	ListAccessLogs(ctx context.Context, ownerID uint64, fileID string, page, limit int) (*models.PageResult[models.AccessLog], error)
	ListFailedLogs(ctx context.Context, ownerID uint64, fileID string, page, limit int) (*models.PageResult[models.FailedAccessLog], error)
}

type auditService struct {
	logRepo  repositories.AccessLogRepository
	fileRepo repositories.FileRepository
	indexer  EventIndexer
}

var _ Service = (*auditService)(nil)

// NewService indexer 可以为 nil
func NewService(logRepo repositories.AccessLogRepository, fileRepo repositories.FileRepository, indexer EventIndexer) Service {
	return &auditService{
		logRepo:  logRepo,
		fileRepo: fileRepo,
		indexer:  indexer,
	}
}

func accessTime(rc access.RequestContext) time.Time {
	if rc.Now.IsZero() {
		return time.Now().UTC()
	}
	return rc.Now.UTC()
}

func (s *auditService) RecordSuccess(ctx context.Context, fileID string, rc access.RequestContext, email *string) error {
	entry := &models.AccessLog{
		FileID:     fileID,
		IPAddress:  rc.ClientIP,
		UserAgent:  rc.UserAgent,
		Email:      email,
		AccessedAt: accessTime(rc),
	}
	if err := s.logRepo.CreateSuccess(ctx, entry); err != nil {
		logger.Error("RecordSuccess: append access log failed", zap.String("fileID", fileID), zap.Error(err))
		return fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	s.mirror(ctx, models.AccessEvent{
		FileID:     fileID,
		Outcome:    OutcomeSuccess,
		IPAddress:  entry.IPAddress,
		UserAgent:  entry.UserAgent,
		Email:      email,
		AccessedAt: entry.AccessedAt,
	})
	return nil
}

func (s *auditService) RecordFailure(ctx context.Context, fileID string, rc access.RequestContext, reason access.Reason, email *string) error {
	entry := &models.FailedAccessLog{
		FileID:     fileID,
		IPAddress:  rc.ClientIP,
		UserAgent:  rc.UserAgent,
		Email:      email,
		Reason:     string(reason),
		AccessedAt: accessTime(rc),
	}
	if err := s.logRepo.CreateFailure(ctx, entry); err != nil {
		logger.Error("RecordFailure: append failed access log failed",
			zap.String("fileID", fileID), zap.String("reason", string(reason)), zap.Error(err))
		return fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	s.mirror(ctx, models.AccessEvent{
		FileID:     fileID,
		Outcome:    OutcomeFailure,
		Reason:     entry.Reason,
		IPAddress:  entry.IPAddress,
		UserAgent:  entry.UserAgent,
		Email:      email,
		AccessedAt: entry.AccessedAt,
	})
	return nil
}

// mirror 镜像写入失败只记日志
func (s *auditService) mirror(ctx context.Context, event models.AccessEvent) {
	if s.indexer == nil {
		return
	}
	if err := s.indexer.IndexAccessEvent(ctx, event); err != nil {
		logger.Warn("mirror access event failed", zap.String("fileID", event.FileID), zap.Error(err))
	}
}

func (s *auditService) ListAccessLogs(ctx context.Context, ownerID uint64, fileID string, page, limit int) (*models.PageResult[models.AccessLog], error) {
	if err := s.checkOwner(ctx, ownerID, fileID); err != nil {
		return nil, err
	}
	page, limit = models.NormalizePage(page, limit)
	logs, total, err := s.logRepo.ListSuccess(ctx, fileID, page, limit)
	if err != nil {
		logger.Error("ListAccessLogs failed", zap.String("fileID", fileID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	return models.NewPageResult(logs, total, page, limit), nil
}

func (s *auditService) ListFailedLogs(ctx context.Context, ownerID uint64, fileID string, page, limit int) (*models.PageResult[models.FailedAccessLog], error) {
	if err := s.checkOwner(ctx, ownerID, fileID); err != nil {
		return nil, err
	}
	page, limit = models.NormalizePage(page, limit)
	logs, total, err := s.logRepo.ListFailure(ctx, fileID, page, limit)
	if err != nil {
		logger.Error("ListFailedLogs failed", zap.String("fileID", fileID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	return models.NewPageResult(logs, total, page, limit), nil
}

func (s *auditService) checkOwner(ctx context.Context, ownerID uint64, fileID string) error {
	file, err := s.fileRepo.FindByID(ctx, fileID)
	if err != nil {
		return err
	}
	if file.OwnerID != ownerID {
		return xerr.ErrPermissionDenied
	}
	return nil
}
