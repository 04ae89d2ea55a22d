// Package share 管理带次数与有效期限制的文件分享链接
package share

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/config"
	"github.com/3Eeeecho/go-fileshare/internal/models"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/metrics"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/notify"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/storage"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/utils"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fileshare/internal/repositories"
	"github.com/3Eeeecho/go-fileshare/internal/services/access"
	"github.com/3Eeeecho/go-fileshare/internal/services/audit"
	"github.com/3Eeeecho/go-fileshare/internal/services/explorer"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ShareService 定义了文件分享服务需要实现的接口
type ShareService interface {
	// CreateShare 从文件剩余下载次数中划出额度并创建分享, 随后尽力发送通知邮件
	CreateShare(ctx context.Context, ownerID uint64, in CreateShareInput) (*CreateShareResult, error)
	// Resolve 查询分享详情, 不消耗额度
	Resolve(ctx context.Context, token string, now time.Time) (*ShareInfo, error)
	// Authorize 校验分享可用性与文件密码, 拒绝时写失败访问日志
	Authorize(ctx context.Context, token string, rc access.RequestContext) (*models.ShareLink, error)
	// Verify 与 Authorize 相同但不检查剩余次数, 预览缓存命中不消耗额度
	Verify(ctx context.Context, token string, rc access.RequestContext) (*models.ShareLink, error)
	// Consume 授权通过后原子地消耗一次额度
	Consume(ctx context.Context, token string, rc access.RequestContext) (*models.File, *models.ShareLink, error)
	// Claim 对已授权的分享原子地消耗一次额度, 供预览等流程使用
	Claim(ctx context.Context, share *models.ShareLink, rc access.RequestContext) error
	// DownloadViaShare 消耗额度并返回文件内容, 调用方负责关闭 Reader
	DownloadViaShare(ctx context.Context, token string, rc access.RequestContext) (*DownloadResult, error)
	// ListShares 文件所有者查看该文件的分享列表
	ListShares(ctx context.Context, ownerID uint64, fileID string, page, limit int) (*models.PageResult[models.ShareLink], error)
}

type CreateShareInput struct {
	FileID      string
	Email       string
	ExpiresAt   time.Time
	MaxDownload int64
	Note        string
}

// CreateShareResult NotifyErr 非空表示分享已创建但通知发送失败
type CreateShareResult struct {
	Share     *models.ShareLink
	ShareURL  string
	NotifyErr error
}

// ShareInfo 对分享接收人展示的信息
type ShareInfo struct {
	Token              string     `json:"token"`
	FileName           string     `json:"file_name"`
	MimeType           string     `json:"mime_type"`
	Size               int64      `json:"size"`
	Note               string     `json:"note"`
	ExpiresAt          time.Time  `json:"expires_at"`
	MaxDownload        int64      `json:"max_download"`
	DownloadCount      int64      `json:"download_count"`
	RemainingDownloads int64      `json:"remaining_downloads"`
	PasswordRequired   bool       `json:"password_required"`
	FileExpiresAt      *time.Time `json:"file_expires_at"`
}

type DownloadResult struct {
	File   *models.File
	Share  *models.ShareLink
	Reader io.ReadCloser
	Size   int64
}

type shareService struct {
	shareRepo repositories.ShareRepository
	fileRepo  repositories.FileRepository
	audit     audit.Service
	tm        explorer.TransactionManager
	storage   storage.StorageService
	notifier  notify.Notifier
	cfg       *config.ShareConfig
}

var _ ShareService = (*shareService)(nil)

// NewShareService 创建一个新的 ShareService 实例
func NewShareService(
	shareRepo repositories.ShareRepository,
	fileRepo repositories.FileRepository,
	auditService audit.Service,
	tm explorer.TransactionManager,
	storageService storage.StorageService,
	notifier notify.Notifier,
	cfg *config.ShareConfig,
) ShareService {
	return &shareService{
		shareRepo: shareRepo,
		fileRepo:  fileRepo,
		audit:     auditService,
		tm:        tm,
		storage:   storageService,
		notifier:  notifier,
		cfg:       cfg,
	}
}

// ShareURL 拼接前端预览地址
func (s *shareService) ShareURL(token string) string {
	return strings.TrimRight(s.cfg.FrontendURL, "/") + "/preview/token/" + token
}

func (s *shareService) CreateShare(ctx context.Context, ownerID uint64, in CreateShareInput) (*CreateShareResult, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: recipient email is required", xerr.ErrInvalidParams)
	}
	if in.ExpiresAt.IsZero() {
		return nil, fmt.Errorf("%w: share expiry is required", xerr.ErrInvalidParams)
	}
	if in.MaxDownload < 0 {
		return nil, fmt.Errorf("%w: max download must not be negative", xerr.ErrInvalidParams)
	}

	// 1. 校验文件存在且属于当前用户
	file, err := s.fileRepo.FindByID(ctx, in.FileID)
	if err != nil {
		if !errors.Is(err, xerr.ErrFileNotFound) {
			logger.Error("CreateShare: 查询文件失败", zap.String("fileID", in.FileID), zap.Error(err))
			return nil, fmt.Errorf("share service: %w", xerr.ErrDatabaseError)
		}
		return nil, err
	}
	if file.OwnerID != ownerID {
		logger.Warn("CreateShare: 无权分享此文件", zap.String("fileID", file.ID), zap.Uint64("userID", ownerID))
		return nil, xerr.ErrPermissionDenied
	}

	// 2. 有下载上限时, 分享额度不能超过剩余次数
	if file.DownloadLimit != nil && *file.DownloadLimit-file.DownloadCount-in.MaxDownload < 0 {
		logger.Warn("CreateShare: 分享额度超过剩余下载次数",
			zap.String("fileID", file.ID), zap.Int64("limit", *file.DownloadLimit),
			zap.Int64("count", file.DownloadCount), zap.Int64("maxDownload", in.MaxDownload))
		return nil, xerr.ErrQuotaExceeded
	}

	token, err := utils.GenerateShareToken(s.cfg.TokenBytes)
	if err != nil {
		logger.Error("CreateShare: 生成分享 token 失败", zap.Error(err))
		return nil, fmt.Errorf("share service: %w", xerr.ErrInternalServer)
	}
	share := &models.ShareLink{
		Token:          token,
		FileID:         file.ID,
		RecipientEmail: email,
		ExpiresAt:      in.ExpiresAt.UTC(),
		MaxDownload:    in.MaxDownload,
		Note:           in.Note,
	}

	// 3. 扣减文件额度与插入分享记录在同一事务中
	err = s.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		if file.DownloadLimit != nil && in.MaxDownload > 0 {
			ok, err := s.fileRepo.ReserveDownloads(tx, file.ID, in.MaxDownload)
			if err != nil {
				return err
			}
			if !ok {
				// 并发下载或分享已用掉了额度
				return xerr.ErrQuotaExceeded
			}
		}
		return s.shareRepo.Create(tx, share)
	})
	if err != nil {
		if errors.Is(err, xerr.ErrQuotaExceeded) {
			return nil, err
		}
		logger.Error("CreateShare: 创建分享失败", zap.String("fileID", file.ID), zap.Error(err))
		return nil, fmt.Errorf("share service: %w", xerr.ErrDatabaseError)
	}

	result := &CreateShareResult{Share: share, ShareURL: s.ShareURL(token)}
	logger.Info("CreateShare: 分享链接创建成功",
		zap.Uint64("shareID", share.ID), zap.String("fileID", file.ID), zap.Int64("maxDownload", in.MaxDownload))

	// 4. 提交后发送通知, 失败不回滚
	notice := notify.FileShareNotice{To: email, ShareURL: result.ShareURL, FileName: file.OriginalName}
	if err := s.notifier.SendFileShareNotice(ctx, notice); err != nil {
		logger.Warn("CreateShare: 分享通知发送失败", zap.Uint64("shareID", share.ID), zap.Error(err))
		result.NotifyErr = fmt.Errorf("%w: %v", xerr.ErrNotifyFailed, err)
	}
	return result, nil
}

// Unavailable 过期与次数用完对外是同一个错误, 原因只用于日志
func Unavailable(reason access.Reason) error {
	return xerr.DeniedWith(string(reason), xerr.ErrShareUnavailable)
}

// Availability 检查文件与分享的有效期以及分享剩余次数
func Availability(share *models.ShareLink, now time.Time) (access.Reason, bool) {
	if share.File.IsExpired(now) || share.IsExpired(now) {
		return access.ReasonExpired, false
	}
	if share.IsExhausted() {
		return access.ReasonLimitExceeded, false
	}
	return "", true
}

func (s *shareService) find(ctx context.Context, token string) (*models.ShareLink, error) {
	share, err := s.shareRepo.FindByToken(ctx, token)
	if err != nil {
		if !errors.Is(err, xerr.ErrShareNotFound) {
			logger.Error("查询分享链接失败", zap.Error(err))
			return nil, fmt.Errorf("share service: %w", xerr.ErrDatabaseError)
		}
		return nil, err
	}
	return share, nil
}

func (s *shareService) Resolve(ctx context.Context, token string, now time.Time) (*ShareInfo, error) {
	share, err := s.find(ctx, token)
	if err != nil {
		return nil, err
	}
	if reason, ok := Availability(share, now); !ok {
		return nil, Unavailable(reason)
	}
	return &ShareInfo{
		Token:              share.Token,
		FileName:           share.File.OriginalName,
		MimeType:           share.File.MimeType,
		Size:               share.File.Size,
		Note:               share.Note,
		ExpiresAt:          share.ExpiresAt,
		MaxDownload:        share.MaxDownload,
		DownloadCount:      share.DownloadCount,
		RemainingDownloads: share.MaxDownload - share.DownloadCount,
		PasswordRequired:   share.File.HasPassword(),
		FileExpiresAt:      share.File.ExpiresAt,
	}, nil
}

func (s *shareService) Authorize(ctx context.Context, token string, rc access.RequestContext) (*models.ShareLink, error) {
	return s.authorize(ctx, token, rc, true)
}

func (s *shareService) Verify(ctx context.Context, token string, rc access.RequestContext) (*models.ShareLink, error) {
	return s.authorize(ctx, token, rc, false)
}

func (s *shareService) authorize(ctx context.Context, token string, rc access.RequestContext, checkQuota bool) (*models.ShareLink, error) {
	if rc.Now.IsZero() {
		rc.Now = time.Now().UTC()
	}
	share, err := s.find(ctx, token)
	if err != nil {
		return nil, err
	}
	if reason, ok := Availability(share, rc.Now); !ok && (checkQuota || reason == access.ReasonExpired) {
		s.deny(ctx, share, rc, reason)
		return nil, Unavailable(reason)
	}
	if share.File.HasPassword() && !access.PasswordMatches(share.File, rc.Password) {
		s.deny(ctx, share, rc, access.ReasonInvalidPassword)
		return nil, xerr.Denied(string(access.ReasonInvalidPassword))
	}
	return share, nil
}

func (s *shareService) Claim(ctx context.Context, share *models.ShareLink, rc access.RequestContext) error {
	if rc.Now.IsZero() {
		rc.Now = time.Now().UTC()
	}
	ok, err := s.shareRepo.Consume(ctx, share.Token, rc.Now)
	if err != nil {
		metrics.ShareConsumptions.WithLabelValues("error").Inc()
		logger.Error("Claim: 消耗分享额度失败", zap.Uint64("shareID", share.ID), zap.Error(err))
		return fmt.Errorf("share service: %w", xerr.ErrDatabaseError)
	}
	if !ok {
		// 预检查之后被并发请求用完或刚好过期
		metrics.ShareConsumptions.WithLabelValues("lost").Inc()
		reason := access.ReasonLimitExceeded
		if share.IsExpired(rc.Now) {
			reason = access.ReasonExpired
		}
		s.deny(ctx, share, rc, reason)
		return Unavailable(reason)
	}
	metrics.ShareConsumptions.WithLabelValues("ok").Inc()
	share.DownloadCount++
	return nil
}

func (s *shareService) Consume(ctx context.Context, token string, rc access.RequestContext) (*models.File, *models.ShareLink, error) {
	share, err := s.Authorize(ctx, token, rc)
	if err != nil {
		return nil, nil, err
	}
	if err := s.Claim(ctx, share, rc); err != nil {
		return nil, nil, err
	}
	return share.File, share, nil
}

func (s *shareService) DownloadViaShare(ctx context.Context, token string, rc access.RequestContext) (*DownloadResult, error) {
	file, share, err := s.Consume(ctx, token, rc)
	if err != nil {
		return nil, err
	}

	obj, err := s.storage.GetObject(ctx, file.OssBucket, file.OssKey)
	if err != nil {
		logger.Error("DownloadViaShare: 获取文件内容失败",
			zap.String("fileID", file.ID), zap.Uint64("shareID", share.ID), zap.Error(err))
		// 取文件失败时归还本次消耗
		if relErr := s.shareRepo.Release(ctx, token); relErr != nil {
			logger.Error("DownloadViaShare: 归还分享额度失败", zap.Uint64("shareID", share.ID), zap.Error(relErr))
		}
		return nil, fmt.Errorf("share service: %w: %v", xerr.ErrStorageError, err)
	}

	email := share.RecipientEmail
	_ = s.audit.RecordSuccess(ctx, file.ID, rc, &email)
	logger.Info("DownloadViaShare success", zap.String("fileID", file.ID), zap.Uint64("shareID", share.ID))
	return &DownloadResult{File: file, Share: share, Reader: obj.Reader, Size: obj.Size}, nil
}

func (s *shareService) ListShares(ctx context.Context, ownerID uint64, fileID string, page, limit int) (*models.PageResult[models.ShareLink], error) {
	file, err := s.fileRepo.FindByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.OwnerID != ownerID {
		return nil, xerr.ErrPermissionDenied
	}
	page, limit = models.NormalizePage(page, limit)
	shares, total, err := s.shareRepo.ListByFileID(ctx, fileID, page, limit)
	if err != nil {
		logger.Error("ListShares: 查询分享列表失败", zap.String("fileID", fileID), zap.Error(err))
		return nil, fmt.Errorf("share service: %w", xerr.ErrDatabaseError)
	}
	return models.NewPageResult(shares, total, page, limit), nil
}

func (s *shareService) deny(ctx context.Context, share *models.ShareLink, rc access.RequestContext, reason access.Reason) {
	logger.Warn("分享访问被拒绝",
		zap.Uint64("shareID", share.ID), zap.String("fileID", share.FileID), zap.String("reason", string(reason)))
	email := share.RecipientEmail
	_ = s.audit.RecordFailure(ctx, share.FileID, rc, reason, &email)
}
