// Package testutil 为各包测试提供 SQLite 数据库与常用夹具
package testutil

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/models"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/storage"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/utils"
	"github.com/3Eeeecho/go-fileshare/internal/setup"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const Bucket = "test-bucket"

// NewDB 每个测试一个独立的 SQLite 文件数据库
// 单连接使并发测试中的写操作串行执行, 条件更新的原子性仍由 SQL 保证
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	logger.SetLogger(zap.NewNop())

	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000"
	cfg := setup.GormConfig()
	cfg.Logger = gormlogger.Default.LogMode(gormlogger.Silent)
	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, setup.AutoMigrate(db))
	return db
}

// NewBlobStore 内存对象存储
func NewBlobStore() *storage.MemoryStorageService {
	return storage.NewMemoryStorageService(Bucket)
}

// FileOption 修改夹具文件
type FileOption func(*models.File)

func WithVisibility(v models.Visibility, password string) FileOption {
	return func(f *models.File) {
		f.Visibility = v
		if password != "" {
			hash, err := utils.HashPassword(password)
			if err != nil {
				panic(err)
			}
			f.Password = &hash
		}
	}
}

func WithLimit(limit, count int64) FileOption {
	return func(f *models.File) {
		f.DownloadLimit = &limit
		f.DownloadCount = count
	}
}

func WithExpiry(at time.Time) FileOption {
	return func(f *models.File) {
		at = at.UTC()
		f.ExpiresAt = &at
	}
}

// CreateFile 写入文件记录与对应 Blob
func CreateFile(t testing.TB, db *gorm.DB, blobs storage.StorageService, ownerID uint64, content []byte, opts ...FileOption) *models.File {
	t.Helper()
	id := uuid.NewString()
	f := &models.File{
		ID:           id,
		OwnerID:      ownerID,
		OssBucket:    Bucket,
		OssKey:       "files/" + id,
		OriginalName: "report-" + id[:8] + ".bin",
		MimeType:     "application/octet-stream",
		Size:         int64(len(content)),
		Visibility:   models.VisibilityPublic,
	}
	for _, opt := range opts {
		opt(f)
	}
	if blobs != nil {
		_, err := blobs.PutObject(context.Background(), Bucket, f.OssKey, bytes.NewReader(content), int64(len(content)), f.MimeType)
		require.NoError(t, err)
	}
	require.NoError(t, db.Create(f).Error)
	return f
}

// Reload 重新读取文件记录
func Reload(t testing.TB, db *gorm.DB, id string) *models.File {
	t.Helper()
	var f models.File
	require.NoError(t, db.Where("id = ?", id).First(&f).Error)
	return &f
}

func Ptr[T any](v T) *T {
	return &v
}
