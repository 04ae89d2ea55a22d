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

type ShareRepository interface {
	// Create 在事务中插入分享记录
	Create(tx *gorm.DB, share *models.ShareLink) error
	// FindByToken 预加载所属文件, 不存在时返回 xerr.ErrShareNotFound
	FindByToken(ctx context.Context, token string) (*models.ShareLink, error)
	// Consume 条件更新: 未过期且次数未用完时计数加一, 返回 false 表示没有修改
	Consume(ctx context.Context, token string, now time.Time) (bool, error)
	// Release 撤销一次消耗, 用于消耗后取文件失败的情况
	Release(ctx context.Context, token string) error
	ListByFileID(ctx context.Context, fileID string, page, limit int) ([]models.ShareLink, int64, error)
	// CountLiveByOwner 统计某用户名下仍可兑换的分享链接
	CountLiveByOwner(ctx context.Context, ownerID uint64, now time.Time) (int64, error)
}

type shareRepository struct {
	db *gorm.DB
}

var _ ShareRepository = (*shareRepository)(nil)

// NewShareRepository 创建新的shareRepository实例
func NewShareRepository(db *gorm.DB) ShareRepository {
	return &shareRepository{db: db}
}

func (r *shareRepository) Create(tx *gorm.DB, share *models.ShareLink) error {
	if err := tx.Create(share).Error; err != nil {
		return fmt.Errorf("create share link: %w", err)
	}
	return nil
}

func (r *shareRepository) FindByToken(ctx context.Context, token string) (*models.ShareLink, error) {
	var share models.ShareLink
	err := r.db.WithContext(ctx).Preload("File").Where("token = ?", token).First(&share).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrShareNotFound
		}
		return nil, fmt.Errorf("查询分享链接失败: %w", err)
	}
	// 文件已被删除但分享残留时按不存在处理
	if share.File == nil {
		return nil, xerr.ErrShareNotFound
	}
	return &share, nil
}

func (r *shareRepository) Consume(ctx context.Context, token string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.ShareLink{}).
		Where("token = ?", token).
		Where("download_count < max_download").
		Where("expires_at >= ?", now.UTC()).
		UpdateColumn("download_count", gorm.Expr("download_count + ?", 1))
	if res.Error != nil {
		return false, fmt.Errorf("consume share link: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *shareRepository) Release(ctx context.Context, token string) error {
	err := r.db.WithContext(ctx).Model(&models.ShareLink{}).
		Where("token = ? AND download_count > 0", token).
		UpdateColumn("download_count", gorm.Expr("download_count - ?", 1)).Error
	if err != nil {
		return fmt.Errorf("release share link: %w", err)
	}
	return nil
}

func (r *shareRepository) ListByFileID(ctx context.Context, fileID string, page, limit int) ([]models.ShareLink, int64, error) {
	var (
		shares []models.ShareLink
		total  int64
	)
	q := r.db.WithContext(ctx).Model(&models.ShareLink{}).Where("file_id = ?", fileID).Session(&gorm.Session{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count share links: %w", err)
	}
	err := q.Order("created_at DESC, id DESC").Offset((page - 1) * limit).Limit(limit).Find(&shares).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list share links: %w", err)
	}
	return shares, total, nil
}

func (r *shareRepository) CountLiveByOwner(ctx context.Context, ownerID uint64, now time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.ShareLink{}).
		Joins("JOIN files ON files.id = share_links.file_id").
		Where("files.owner_id = ?", ownerID).
		Where("share_links.download_count < share_links.max_download").
		Where("share_links.expires_at >= ?", now.UTC()).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count live share links: %w", err)
	}
	return n, nil
}
