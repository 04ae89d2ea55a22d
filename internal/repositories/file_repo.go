package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/models"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"gorm.io/gorm"
)

// FileStats 用户文件统计
type FileStats struct {
	TotalFiles             int64 `json:"total_files"`
	ExpiredFiles           int64 `json:"expired_files"`
	PrivateFiles           int64 `json:"private_files"`
	PublicFiles            int64 `json:"public_files"`
	PasswordProtectedFiles int64 `json:"password_protected_files"`
	TotalDownloads         int64 `json:"total_downloads"`
}

// ExpiredCursor 过期文件的分页位置
type ExpiredCursor struct {
	ExpiresAt time.Time
	ID        string
}

type FileRepository interface {
	Create(ctx context.Context, file *models.File) error
	// FindByID 不存在时返回 xerr.ErrFileNotFound
	FindByID(ctx context.Context, id string) (*models.File, error)
	// UpdateFields 只更新给定列, 不会覆盖并发写入的下载计数
	UpdateFields(ctx context.Context, id string, fields map[string]any) error
	// UpdateFieldsWithinCount 仅在 download_count <= maxCount 时更新, 用于写入新的下载上限
	// 返回 false 表示没有行被修改
	UpdateFieldsWithinCount(ctx context.Context, id string, fields map[string]any, maxCount int64) (bool, error)
	// IncrementDownloadCount 条件更新: 未过期且未达到下载上限时计数加一
	// 返回 false 表示条件不满足, 没有任何修改
	IncrementDownloadCount(ctx context.Context, id string, now time.Time) (bool, error)
	// ReserveDownloads 在事务中从剩余下载次数中划出 n 次
	ReserveDownloads(tx *gorm.DB, id string, n int64) (bool, error)
	// FindExpired 过期时间早于 now 的文件, 按 (expires_at, id) 升序, after 非空时从其之后开始
	// 未设置过期时间的不会返回
	FindExpired(ctx context.Context, now time.Time, after *ExpiredCursor, limit int) ([]models.File, error)
	// DeleteCascade 在事务中删除文件及其分享与访问日志, 记录已不存在时返回 false
	DeleteCascade(tx *gorm.DB, id string) (bool, error)
	Stats(ctx context.Context, ownerID uint64, now time.Time) (*FileStats, error)
}

type fileRepository struct {
	db *gorm.DB
}

var _ FileRepository = (*fileRepository)(nil)

func NewFileRepository(db *gorm.DB) FileRepository {
	return &fileRepository{db: db}
}

func (r *fileRepository) Create(ctx context.Context, file *models.File) error {
	if err := r.db.WithContext(ctx).Create(file).Error; err != nil {
		return fmt.Errorf("create file record: %w", err)
	}
	return nil
}

func (r *fileRepository) FindByID(ctx context.Context, id string) (*models.File, error) {
	var file models.File
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrFileNotFound
		}
		return nil, fmt.Errorf("find file %s: %w", id, err)
	}
	return &file, nil
}

func (r *fileRepository) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	err := r.db.WithContext(ctx).Model(&models.File{}).Where("id = ?", id).Updates(fields).Error
	if err != nil {
		return fmt.Errorf("update file %s: %w", id, err)
	}
	return nil
}

func (r *fileRepository) UpdateFieldsWithinCount(ctx context.Context, id string, fields map[string]any, maxCount int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.File{}).
		Where("id = ? AND download_count <= ?", id, maxCount).
		Updates(fields)
	if res.Error != nil {
		return false, fmt.Errorf("update file %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *fileRepository) IncrementDownloadCount(ctx context.Context, id string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.File{}).
		Where("id = ?", id).
		Where("(download_limit IS NULL OR download_count < download_limit)").
		Where("(expires_at IS NULL OR expires_at >= ?)", now.UTC()).
		UpdateColumn("download_count", gorm.Expr("download_count + ?", 1))
	if res.Error != nil {
		return false, fmt.Errorf("increment download count of %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *fileRepository) ReserveDownloads(tx *gorm.DB, id string, n int64) (bool, error) {
	res := tx.Model(&models.File{}).
		Where("id = ?", id).
		Where("download_limit IS NOT NULL AND download_limit - download_count >= ?", n).
		UpdateColumn("download_limit", gorm.Expr("download_limit - ?", n))
	if res.Error != nil {
		return false, fmt.Errorf("reserve downloads of %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *fileRepository) FindExpired(ctx context.Context, now time.Time, after *ExpiredCursor, limit int) ([]models.File, error) {
	var files []models.File
	q := r.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", now.UTC())
	if after != nil {
		at := after.ExpiresAt.UTC()
		q = q.Where("(expires_at > ? OR (expires_at = ? AND id > ?))", at, at, after.ID)
	}
	q = q.Order("expires_at ASC").Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&files).Error; err != nil {
		return nil, fmt.Errorf("find expired files: %w", err)
	}
	return files, nil
}

func (r *fileRepository) DeleteCascade(tx *gorm.DB, id string) (bool, error) {
	if err := tx.Where("file_id = ?", id).Delete(&models.ShareLink{}).Error; err != nil {
		return false, fmt.Errorf("delete share links of %s: %w", id, err)
	}
	if err := tx.Where("file_id = ?", id).Delete(&models.AccessLog{}).Error; err != nil {
		return false, fmt.Errorf("delete access logs of %s: %w", id, err)
	}
	if err := tx.Where("file_id = ?", id).Delete(&models.FailedAccessLog{}).Error; err != nil {
		return false, fmt.Errorf("delete failed access logs of %s: %w", id, err)
	}
	res := tx.Where("id = ?", id).Delete(&models.File{})
	if res.Error != nil {
		return false, fmt.Errorf("delete file %s: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *fileRepository) Stats(ctx context.Context, ownerID uint64, now time.Time) (*FileStats, error) {
	var stats FileStats
	base := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.File{}).Where("owner_id = ?", ownerID)
	}

	if err := base().Count(&stats.TotalFiles).Error; err != nil {
		return nil, fmt.Errorf("count files: %w", err)
	}
	if err := base().Where("expires_at IS NOT NULL AND expires_at < ?", now.UTC()).Count(&stats.ExpiredFiles).Error; err != nil {
		return nil, fmt.Errorf("count expired files: %w", err)
	}
	counts := map[models.Visibility]*int64{
		models.VisibilityPrivate:           &stats.PrivateFiles,
		models.VisibilityPublic:            &stats.PublicFiles,
		models.VisibilityPasswordProtected: &stats.PasswordProtectedFiles,
	}
	for v, dst := range counts {
		if err := base().Where("visibility = ?", v).Count(dst).Error; err != nil {
			return nil, fmt.Errorf("count %s files: %w", v, err)
		}
	}
	if err := base().Select("COALESCE(SUM(download_count), 0)").Scan(&stats.TotalDownloads).Error; err != nil {
		return nil, fmt.Errorf("sum downloads: %w", err)
	}
	return &stats, nil
}
