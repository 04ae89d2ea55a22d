package repositories

import (
	"context"
	"fmt"

	"github.com/3Eeeecho/go-fileshare/internal/models"
	"gorm.io/gorm"
)

// AccessLogRepository 只追加的访问日志, 删除只随文件级联发生
type AccessLogRepository interface {
	CreateSuccess(ctx context.Context, entry *models.AccessLog) error
	CreateFailure(ctx context.Context, entry *models.FailedAccessLog) error
	ListSuccess(ctx context.Context, fileID string, page, limit int) ([]models.AccessLog, int64, error)
	ListFailure(ctx context.Context, fileID string, page, limit int) ([]models.FailedAccessLog, int64, error)
	CreateDeletionFailure(ctx context.Context, entry *models.DeletionFailureLog) error
}

type accessLogRepository struct {
	db *gorm.DB
}

var _ AccessLogRepository = (*accessLogRepository)(nil)

func NewAccessLogRepository(db *gorm.DB) AccessLogRepository {
	return &accessLogRepository{db: db}
}

func (r *accessLogRepository) CreateSuccess(ctx context.Context, entry *models.AccessLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("append access log: %w", err)
	}
	return nil
}

func (r *accessLogRepository) CreateFailure(ctx context.Context, entry *models.FailedAccessLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("append failed access log: %w", err)
	}
	return nil
}

func (r *accessLogRepository) ListSuccess(ctx context.Context, fileID string, page, limit int) ([]models.AccessLog, int64, error) {
	var (
		logs  []models.AccessLog
		total int64
	)
	if err := listNewestFirst(r.db.WithContext(ctx).Model(&models.AccessLog{}), fileID, page, limit, &total, &logs); err != nil {
		return nil, 0, fmt.Errorf("list access logs: %w", err)
	}
	return logs, total, nil
}

func (r *accessLogRepository) ListFailure(ctx context.Context, fileID string, page, limit int) ([]models.FailedAccessLog, int64, error) {
	var (
		logs  []models.FailedAccessLog
		total int64
	)
	if err := listNewestFirst(r.db.WithContext(ctx).Model(&models.FailedAccessLog{}), fileID, page, limit, &total, &logs); err != nil {
		return nil, 0, fmt.Errorf("list failed access logs: %w", err)
	}
	return logs, total, nil
}

func (r *accessLogRepository) CreateDeletionFailure(ctx context.Context, entry *models.DeletionFailureLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("append deletion failure log: %w", err)
	}
	return nil
}

func listNewestFirst(q *gorm.DB, fileID string, page, limit int, total *int64, dest any) error {
	// Session 之后的查询可以安全复用
	q = q.Where("file_id = ?", fileID).Session(&gorm.Session{})
	if err := q.Count(total).Error; err != nil {
		return err
	}
	return q.Order("accessed_at DESC, id DESC").Offset((page - 1) * limit).Limit(limit).Find(dest).Error
}
