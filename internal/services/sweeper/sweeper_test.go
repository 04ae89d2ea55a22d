package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/config"
	"github.com/3Eeeecho/go-fileshare/internal/models"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/storage"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/testutil"
	"github.com/3Eeeecho/go-fileshare/internal/repositories"
	"github.com/3Eeeecho/go-fileshare/internal/services/explorer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// flakyStore 对指定对象删除失败
type flakyStore struct {
	*storage.MemoryStorageService
	failKeys map[string]bool
}

func (f *flakyStore) RemoveObject(ctx context.Context, bucketName, objectName string) error {
	if f.failKeys[objectName] {
		return errors.New("storage unavailable")
	}
	return f.MemoryStorageService.RemoveObject(ctx, bucketName, objectName)
}

func newSweeper(t *testing.T, store storage.StorageService) (*Sweeper, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	s := NewSweeper(
		repositories.NewFileRepository(db),
		repositories.NewAccessLogRepository(db),
		explorer.NewTransactionManager(db),
		store,
		config.SweeperConfig{Spec: "*/1 * * * * *", BatchSize: 100},
	)
	return s, db
}

func exists(t *testing.T, db *gorm.DB, id string) bool {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.File{}).Where("id = ?", id).Count(&n).Error)
	return n == 1
}

func TestRunOnce_DeletesOnlyExpired(t *testing.T) {
	blobs := testutil.NewBlobStore()
	s, db := newSweeper(t, blobs)
	now := time.Now()

	expired := testutil.CreateFile(t, db, blobs, 1, []byte("old"), testutil.WithExpiry(now.Add(-time.Hour)))
	forever := testutil.CreateFile(t, db, blobs, 1, []byte("keep"))
	future := testutil.CreateFile(t, db, blobs, 1, []byte("later"), testutil.WithExpiry(now.Add(time.Hour)))
	require.NoError(t, db.Create(&models.ShareLink{
		Token: "t1", FileID: expired.ID, RecipientEmail: "a@b.c", ExpiresAt: now.Add(time.Hour), MaxDownload: 1,
	}).Error)
	require.NoError(t, db.Create(&models.AccessLog{FileID: expired.ID, AccessedAt: now}).Error)

	res := s.RunOnce(context.Background())
	assert.Equal(t, 1, res.Scanned)
	assert.Equal(t, 1, res.Deleted)
	assert.Zero(t, res.Failed)

	assert.False(t, exists(t, db, expired.ID))
	assert.False(t, blobs.Has(testutil.Bucket, expired.OssKey))
	assert.True(t, exists(t, db, forever.ID))
	assert.True(t, exists(t, db, future.ID))

	var shares, logs int64
	require.NoError(t, db.Model(&models.ShareLink{}).Where("file_id = ?", expired.ID).Count(&shares).Error)
	require.NoError(t, db.Model(&models.AccessLog{}).Where("file_id = ?", expired.ID).Count(&logs).Error)
	assert.Zero(t, shares)
	assert.Zero(t, logs)
}

func TestRunOnce_MissingBlobCountsAsDeleted(t *testing.T) {
	blobs := testutil.NewBlobStore()
	s, db := newSweeper(t, blobs)
	file := testutil.CreateFile(t, db, nil, 1, []byte("x"), testutil.WithExpiry(time.Now().Add(-time.Minute)))

	res := s.RunOnce(context.Background())
	assert.Equal(t, 1, res.Deleted)
	assert.False(t, exists(t, db, file.ID))
}

func TestRunOnce_FailureIsIsolated(t *testing.T) {
	base := testutil.NewBlobStore()
	store := &flakyStore{MemoryStorageService: base}
	s, db := newSweeper(t, store)
	past := time.Now().Add(-time.Hour)

	bad := testutil.CreateFile(t, db, store, 1, []byte("bad"), testutil.WithExpiry(past))
	good := testutil.CreateFile(t, db, store, 1, []byte("good"), testutil.WithExpiry(past.Add(time.Minute)))
	store.failKeys = map[string]bool{bad.OssKey: true}

	res := s.RunOnce(context.Background())
	assert.Equal(t, 2, res.Scanned)
	assert.Equal(t, 1, res.Deleted)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, bad.ID, res.Failures[0].FileID)
	assert.Equal(t, "blob", res.Failures[0].Stage)

	assert.True(t, exists(t, db, bad.ID))
	assert.False(t, exists(t, db, good.ID))

	var failures []models.DeletionFailureLog
	require.NoError(t, db.Find(&failures).Error)
	require.Len(t, failures, 1)
	assert.Equal(t, bad.ID, failures[0].FileID)
	assert.Equal(t, bad.OssKey, failures[0].OssKey)
}

func TestRunOnce_PagesPastFailedBatch(t *testing.T) {
	store := &flakyStore{MemoryStorageService: testutil.NewBlobStore()}
	s, db := newSweeper(t, store)
	s.cfg.BatchSize = 2
	past := time.Now().Add(-time.Hour)

	// 最早过期的一整批都无法删除
	stuck1 := testutil.CreateFile(t, db, store, 1, []byte("a"), testutil.WithExpiry(past))
	stuck2 := testutil.CreateFile(t, db, store, 1, []byte("b"), testutil.WithExpiry(past.Add(time.Second)))
	later := testutil.CreateFile(t, db, store, 1, []byte("c"), testutil.WithExpiry(past.Add(time.Minute)))
	store.failKeys = map[string]bool{stuck1.OssKey: true, stuck2.OssKey: true}

	for run := 0; run < 2; run++ {
		res := s.RunOnce(context.Background())
		assert.Equal(t, 2, res.Failed)
		if run == 0 {
			assert.Equal(t, 3, res.Scanned)
			assert.Equal(t, 1, res.Deleted)
		}
	}

	assert.True(t, exists(t, db, stuck1.ID))
	assert.True(t, exists(t, db, stuck2.ID))
	assert.False(t, exists(t, db, later.ID))
	assert.False(t, store.Has(testutil.Bucket, later.OssKey))
}

func TestSweepOne_AlreadyDeletedRecordIsNoop(t *testing.T) {
	blobs := testutil.NewBlobStore()
	s, db := newSweeper(t, blobs)
	file := testutil.CreateFile(t, db, blobs, 1, []byte("x"), testutil.WithExpiry(time.Now().Add(-time.Minute)))

	// 所有者在清理任务查询之后删除了该文件
	require.NoError(t, db.Where("id = ?", file.ID).Delete(&models.File{}).Error)
	assert.Nil(t, s.sweepOne(context.Background(), file))
}

func TestStartStop(t *testing.T) {
	blobs := testutil.NewBlobStore()
	s, _ := newSweeper(t, blobs)

	require.NoError(t, s.Start())
	assert.Error(t, s.Start())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
}

func TestStart_InvalidSpec(t *testing.T) {
	blobs := testutil.NewBlobStore()
	s, _ := newSweeper(t, blobs)
	s.cfg.Spec = "not a cron spec"
	assert.Error(t, s.Start())
}
