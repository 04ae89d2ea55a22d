package explorer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/models"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/storage"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/utils"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fileshare/internal/repositories"
	"github.com/3Eeeecho/go-fileshare/internal/services/access"
	"github.com/3Eeeecho/go-fileshare/internal/services/audit"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type FileService interface {
	// 文件上传
	Upload(ctx context.Context, ownerID uint64, in UploadInput) (*models.File, error)

	// 所有者修改访问策略
	UpdateMetadata(ctx context.Context, ownerID uint64, in UpdateMetadataInput) (*models.File, error)
	UpdateVisibility(ctx context.Context, ownerID uint64, fileID string, visibility models.Visibility, password *string) (*models.File, error)

	// GetMetadata 探测接口, 不消耗下载次数也不写审计日志
	GetMetadata(ctx context.Context, fileID string, now time.Time) (*FileMetadata, error)
	// Download 经过访问决策后返回文件内容, 调用方负责关闭 Reader
	Download(ctx context.Context, fileID string, rc access.RequestContext) (*DownloadResult, error)

	Delete(ctx context.Context, ownerID uint64, fileID string) error
	Stats(ctx context.Context, ownerID uint64) (*repositories.FileStats, error)
}

// UploadInput 上传参数, Visibility 为空时默认 private
type UploadInput struct {
	FileName      string
	Size          int64
	Content       io.Reader
	Visibility    models.Visibility
	Password      *string
	ExpiresAt     *time.Time
	DownloadLimit *int64
}

// UpdateMetadataInput DownloadLimit 为 nil 表示取消下载次数限制, ExpiresAt 为 nil 表示保持不变
type UpdateMetadataInput struct {
	FileID        string
	Visibility    models.Visibility
	Password      *string
	ExpiresAt     *time.Time
	DownloadLimit *int64
}

// FileMetadata 元数据探测结果
type FileMetadata struct {
	ID                 string            `json:"id"`
	Name               string            `json:"name"`
	MimeType           string            `json:"mime_type"`
	Size               int64             `json:"size"`
	Visibility         models.Visibility `json:"visibility"`
	ExpiresAt          *time.Time        `json:"expires_at"`
	IsExpired          bool              `json:"is_expired"`
	PasswordRequired   bool              `json:"password_required"`
	RemainingDownloads *int64            `json:"remaining_downloads"`
}

type DownloadResult struct {
	File   *models.File
	Reader io.ReadCloser
	Size   int64
}

type fileService struct {
	fileRepo repositories.FileRepository
	logRepo  repositories.AccessLogRepository
	audit    audit.Service
	tm       TransactionManager
	storage  storage.StorageService
	clock    func() time.Time
}

var _ FileService = (*fileService)(nil)

// NewFileService 创建一个新的文件服务实例
func NewFileService(
	fileRepo repositories.FileRepository,
	logRepo repositories.AccessLogRepository,
	auditService audit.Service,
	tm TransactionManager,
	storageService storage.StorageService,
) FileService {
	return &fileService{
		fileRepo: fileRepo,
		logRepo:  logRepo,
		audit:    auditService,
		tm:       tm,
		storage:  storageService,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// checkOwner 返回文件, 调用方不是所有者时返回 ErrPermissionDenied
func (s *fileService) checkOwner(ctx context.Context, ownerID uint64, fileID string) (*models.File, error) {
	file, err := s.fileRepo.FindByID(ctx, fileID)
	if err != nil {
		if !errors.Is(err, xerr.ErrFileNotFound) {
			logger.Error("checkOwner: find file failed", zap.String("fileID", fileID), zap.Error(err))
			return nil, fmt.Errorf("file service: %w", xerr.ErrDatabaseError)
		}
		return nil, err
	}
	if file.OwnerID != ownerID {
		logger.Warn("File access denied",
			zap.String("fileID", fileID),
			zap.Uint64("userID", ownerID),
			zap.Uint64("ownerID", file.OwnerID))
		return nil, xerr.ErrPermissionDenied
	}
	return file, nil
}

// resolvePassword 计算可见性变更后的密码列
// 受密码保护时必须提供新密码, 或文件本身已有密码; 其余可见性一律清除密码
func resolvePassword(current *models.File, visibility models.Visibility, password *string) (any, error) {
	if visibility != models.VisibilityPasswordProtected {
		return nil, nil
	}
	if password != nil && *password != "" {
		hash, err := utils.HashPassword(*password)
		if err != nil {
			return nil, fmt.Errorf("hash file password: %w", err)
		}
		return hash, nil
	}
	if current != nil && current.HasPassword() && current.Password != nil {
		return *current.Password, nil
	}
	return nil, fmt.Errorf("%w: password required for password_protected visibility", xerr.ErrInvalidParams)
}

func (s *fileService) UpdateMetadata(ctx context.Context, ownerID uint64, in UpdateMetadataInput) (*models.File, error) {
	file, err := s.checkOwner(ctx, ownerID, in.FileID)
	if err != nil {
		return nil, err
	}

	visibility := in.Visibility
	if visibility == "" {
		visibility = file.Visibility
	}
	if !visibility.Valid() {
		return nil, fmt.Errorf("%w: unknown visibility %q", xerr.ErrInvalidParams, visibility)
	}
	password, err := resolvePassword(file, visibility, in.Password)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{
		"visibility":     visibility,
		"password":       password,
		"download_limit": nil,
	}
	if in.ExpiresAt != nil {
		if !in.ExpiresAt.After(s.clock()) {
			return nil, xerr.ErrInvalidExpiry
		}
		fields["expires_at"] = in.ExpiresAt.UTC()
	}
	if in.DownloadLimit != nil {
		if *in.DownloadLimit < 0 {
			return nil, fmt.Errorf("%w: download limit must not be negative", xerr.ErrInvalidParams)
		}
		if *in.DownloadLimit < file.DownloadCount {
			return nil, fmt.Errorf("%w: download limit below current download count %d", xerr.ErrInvalidParams, file.DownloadCount)
		}
		fields["download_limit"] = *in.DownloadLimit
	}

	if in.DownloadLimit == nil {
		err = s.fileRepo.UpdateFields(ctx, file.ID, fields)
	} else {
		err = s.updateLimited(ctx, file.ID, fields, *in.DownloadLimit)
	}
	if err != nil {
		if errors.Is(err, xerr.ErrInvalidParams) || errors.Is(err, xerr.ErrFileNotFound) {
			return nil, err
		}
		logger.Error("UpdateMetadata failed", zap.String("fileID", file.ID), zap.Error(err))
		return nil, fmt.Errorf("file service: %w", xerr.ErrDatabaseError)
	}
	logger.Info("UpdateMetadata success", zap.Uint64("userID", ownerID), zap.String("fileID", file.ID))
	return s.fileRepo.FindByID(ctx, file.ID)
}

// updateLimited 写入新的下载上限, 条件更新保证计数不会超过上限
// 读取之后有下载提交时, 条件不再满足, 返回 ErrInvalidParams
func (s *fileService) updateLimited(ctx context.Context, fileID string, fields map[string]any, limit int64) error {
	ok, err := s.fileRepo.UpdateFieldsWithinCount(ctx, fileID, fields, limit)
	if err != nil || ok {
		return err
	}
	// MySQL 对未改变的行返回 0, 需要重新读取才能区分
	current, err := s.fileRepo.FindByID(ctx, fileID)
	if err != nil {
		return err
	}
	if current.DownloadCount > limit {
		logger.Warn("UpdateMetadata: download count passed new limit",
			zap.String("fileID", fileID), zap.Int64("limit", limit), zap.Int64("count", current.DownloadCount))
		return fmt.Errorf("%w: download limit below current download count %d", xerr.ErrInvalidParams, current.DownloadCount)
	}
	return nil
}

func (s *fileService) UpdateVisibility(ctx context.Context, ownerID uint64, fileID string, visibility models.Visibility, password *string) (*models.File, error) {
	if !visibility.Valid() {
		return nil, fmt.Errorf("%w: unknown visibility %q", xerr.ErrInvalidParams, visibility)
	}
	file, err := s.checkOwner(ctx, ownerID, fileID)
	if err != nil {
		return nil, err
	}
	hash, err := resolvePassword(file, visibility, password)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{"visibility": visibility, "password": hash}
	if err := s.fileRepo.UpdateFields(ctx, fileID, fields); err != nil {
		logger.Error("UpdateVisibility failed", zap.String("fileID", fileID), zap.Error(err))
		return nil, fmt.Errorf("file service: %w", xerr.ErrDatabaseError)
	}
	logger.Info("UpdateVisibility success",
		zap.Uint64("userID", ownerID), zap.String("fileID", fileID), zap.String("visibility", string(visibility)))
	return s.fileRepo.FindByID(ctx, fileID)
}

func (s *fileService) GetMetadata(ctx context.Context, fileID string, now time.Time) (*FileMetadata, error) {
	file, err := s.fileRepo.FindByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	meta := &FileMetadata{
		ID:               file.ID,
		Name:             file.OriginalName,
		MimeType:         file.MimeType,
		Size:             file.Size,
		Visibility:       file.Visibility,
		ExpiresAt:        file.ExpiresAt,
		IsExpired:        file.IsExpired(now),
		PasswordRequired: file.HasPassword(),
	}
	if remaining, limited := file.RemainingDownloads(); limited {
		meta.RemainingDownloads = &remaining
	}
	return meta, nil
}

// Delete 先在事务中删除记录及其分享与日志, 再删除 Blob
// Blob 删除失败只记录到删除失败日志, 不影响结果
func (s *fileService) Delete(ctx context.Context, ownerID uint64, fileID string) error {
	file, err := s.checkOwner(ctx, ownerID, fileID)
	if err != nil {
		return err
	}

	err = s.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		_, err := s.fileRepo.DeleteCascade(tx, file.ID)
		return err
	})
	if err != nil {
		logger.Error("Delete: cascade delete failed", zap.String("fileID", file.ID), zap.Error(err))
		return fmt.Errorf("file service: %w", xerr.ErrDatabaseError)
	}

	if err := s.storage.RemoveObject(ctx, file.OssBucket, file.OssKey); err != nil {
		logger.Error("Delete: remove blob failed", zap.String("fileID", file.ID), zap.String("ossKey", file.OssKey), zap.Error(err))
		entry := &models.DeletionFailureLog{
			FileID:   file.ID,
			FileName: file.OriginalName,
			OssKey:   file.OssKey,
			Reason:   err.Error(),
		}
		if logErr := s.logRepo.CreateDeletionFailure(ctx, entry); logErr != nil {
			logger.Error("Delete: record deletion failure failed", zap.String("fileID", file.ID), zap.Error(logErr))
		}
	}
	logger.Info("Delete success", zap.Uint64("userID", ownerID), zap.String("fileID", file.ID))
	return nil
}

func (s *fileService) Stats(ctx context.Context, ownerID uint64) (*repositories.FileStats, error) {
	stats, err := s.fileRepo.Stats(ctx, ownerID, s.clock())
	if err != nil {
		logger.Error("Stats failed", zap.Uint64("userID", ownerID), zap.Error(err))
		return nil, fmt.Errorf("file service: %w", xerr.ErrDatabaseError)
	}
	return stats, nil
}
