package preview

import (
	"context"

	"github.com/3Eeeecho/go-fileshare/internal/pkg/cache"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fileshare/internal/services/access"
	"github.com/3Eeeecho/go-fileshare/internal/services/audit"
	"github.com/3Eeeecho/go-fileshare/internal/services/share"
	"go.uber.org/zap"
)

type PreviewService interface {
	// PreviewViaShare 缓存命中时直接返回, 新渲染的预览消耗一次分享额度
	PreviewViaShare(ctx context.Context, token string, rc access.RequestContext) (*cache.Rendition, error)
}

type previewService struct {
	shares   share.ShareService
	renderer *Renderer
	audit    audit.Service
}

var _ PreviewService = (*previewService)(nil)

func NewPreviewService(shares share.ShareService, renderer *Renderer, auditService audit.Service) PreviewService {
	return &previewService{shares: shares, renderer: renderer, audit: auditService}
}

func (s *previewService) PreviewViaShare(ctx context.Context, token string, rc access.RequestContext) (*cache.Rendition, error) {
	sh, err := s.shares.Verify(ctx, token, rc)
	if err != nil {
		return nil, err
	}

	rendition, fromCache, err := s.renderer.Render(ctx, token)
	if err != nil {
		if reason, ok := xerr.DenyReason(err); ok {
			email := sh.RecipientEmail
			_ = s.audit.RecordFailure(ctx, sh.FileID, rc, access.Reason(reason), &email)
		}
		return nil, err
	}
	if fromCache {
		logger.Debug("PreviewViaShare: 命中预览缓存", zap.Uint64("shareID", sh.ID))
		return rendition, nil
	}

	// 新渲染的预览才消耗额度, 抢占失败时丢弃缓存
	if err := s.shares.Claim(ctx, sh, rc); err != nil {
		s.renderer.Invalidate(ctx, token)
		return nil, err
	}
	email := sh.RecipientEmail
	_ = s.audit.RecordSuccess(ctx, sh.FileID, rc, &email)
	logger.Info("PreviewViaShare success", zap.Uint64("shareID", sh.ID), zap.String("fileID", sh.FileID))
	return rendition, nil
}
