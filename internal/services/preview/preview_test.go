package preview

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/config"
	"github.com/3Eeeecho/go-fileshare/internal/models"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/cache"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/notify"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/storage"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/testutil"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fileshare/internal/repositories"
	"github.com/3Eeeecho/go-fileshare/internal/services/access"
	"github.com/3Eeeecho/go-fileshare/internal/services/audit"
	"github.com/3Eeeecho/go-fileshare/internal/services/explorer"
	"github.com/3Eeeecho/go-fileshare/internal/services/share"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// hookStore 在读取对象时执行回调, 用于模拟渲染期间的并发消耗
type hookStore struct {
	*storage.MemoryStorageService
	mu     sync.Mutex
	onRead func()
}

func (h *hookStore) GetObject(ctx context.Context, bucketName, objectName string) (storage.GetObjectResult, error) {
	h.mu.Lock()
	fn := h.onRead
	h.mu.Unlock()
	if fn != nil {
		fn()
	}
	return h.MemoryStorageService.GetObject(ctx, bucketName, objectName)
}

// countingCache 记录 Del 调用
type countingCache struct {
	*cache.LRUCache
	dels int
}

func (c *countingCache) Del(ctx context.Context, keys ...string) error {
	c.dels++
	return c.LRUCache.Del(ctx, keys...)
}

type fixture struct {
	db    *gorm.DB
	blobs *hookStore
	cache *countingCache
	svc   PreviewService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	blobs := &hookStore{MemoryStorageService: testutil.NewBlobStore()}
	previewCache := &countingCache{LRUCache: cache.NewLRUCache(16, time.Minute)}

	fileRepo := repositories.NewFileRepository(db)
	shareRepo := repositories.NewShareRepository(db)
	logRepo := repositories.NewAccessLogRepository(db)
	auditService := audit.NewService(logRepo, fileRepo, nil)
	shares := share.NewShareService(shareRepo, fileRepo, auditService, explorer.NewTransactionManager(db),
		blobs, notify.LogNotifier{}, &config.ShareConfig{FrontendURL: "http://localhost:3000"})
	renderer := NewRenderer(shareRepo, blobs, previewCache, time.Minute)

	return &fixture{
		db:    db,
		blobs: blobs,
		cache: previewCache,
		svc:   NewPreviewService(shares, renderer, auditService),
	}
}

func (f *fixture) addShare(t *testing.T, fileID string, max int64) *models.ShareLink {
	t.Helper()
	s := &models.ShareLink{
		Token:          uuid.NewString(),
		FileID:         fileID,
		RecipientEmail: "carol@example.com",
		ExpiresAt:      time.Now().Add(time.Hour).UTC(),
		MaxDownload:    max,
	}
	require.NoError(t, f.db.Create(s).Error)
	return s
}

func (f *fixture) shareCount(t *testing.T, token string) int64 {
	t.Helper()
	var s models.ShareLink
	require.NoError(t, f.db.Where("token = ?", token).First(&s).Error)
	return s.DownloadCount
}

func (f *fixture) accessLogs(t *testing.T, fileID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.AccessLog{}).Where("file_id = ?", fileID).Count(&n).Error)
	return n
}

func samplePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 200, 120))
	for y := 0; y < 120; y++ {
		for x := 0; x < 200; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 220, B: 240, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPreview_FreshRenderConsumesAndCacheHitDoesNot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	file := testutil.CreateFile(t, f.db, f.blobs, 1, samplePNG(t))
	s := f.addShare(t, file.ID, 1)

	first, err := f.svc.PreviewViaShare(ctx, s.Token, access.RequestContext{})
	require.NoError(t, err)
	assert.True(t, first.IsImage)
	assert.Equal(t, "image/png", first.MimeType)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(first.Data))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 200, cfg.Width)
	assert.Equal(t, int64(1), f.shareCount(t, s.Token))
	assert.Equal(t, int64(1), f.accessLogs(t, file.ID))

	// 额度已用完, 但缓存仍然有效
	second, err := f.svc.PreviewViaShare(ctx, s.Token, access.RequestContext{})
	require.NoError(t, err)
	assert.Equal(t, first.Data, second.Data)
	assert.Equal(t, int64(1), f.shareCount(t, s.Token))
	assert.Equal(t, int64(1), f.accessLogs(t, file.ID))
}

func TestPreview_UnsupportedType(t *testing.T) {
	f := newFixture(t)
	file := testutil.CreateFile(t, f.db, f.blobs, 1, []byte("just some plain text"))
	s := f.addShare(t, file.ID, 2)

	_, err := f.svc.PreviewViaShare(context.Background(), s.Token, access.RequestContext{})
	assert.ErrorIs(t, err, xerr.ErrUnsupportedType)
	assert.Equal(t, int64(0), f.shareCount(t, s.Token))
}

func TestPreview_ExhaustedShareOnMiss(t *testing.T) {
	f := newFixture(t)
	file := testutil.CreateFile(t, f.db, f.blobs, 1, samplePNG(t))
	s := f.addShare(t, file.ID, 0)

	_, err := f.svc.PreviewViaShare(context.Background(), s.Token, access.RequestContext{})
	assert.ErrorIs(t, err, xerr.ErrShareUnavailable)
}

func TestPreview_WrongPassword(t *testing.T) {
	f := newFixture(t)
	file := testutil.CreateFile(t, f.db, f.blobs, 1, samplePNG(t),
		testutil.WithVisibility(models.VisibilityPasswordProtected, "pw"))
	s := f.addShare(t, file.ID, 2)

	_, err := f.svc.PreviewViaShare(context.Background(), s.Token, access.RequestContext{Password: testutil.Ptr("no")})
	assert.ErrorIs(t, err, xerr.ErrAccessDenied)

	_, err = f.svc.PreviewViaShare(context.Background(), s.Token, access.RequestContext{Password: testutil.Ptr("pw")})
	assert.NoError(t, err)
}

func TestPreview_UnknownToken(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.PreviewViaShare(context.Background(), "nope", access.RequestContext{})
	assert.ErrorIs(t, err, xerr.ErrShareNotFound)
}

func TestPreview_LostClaimDropsCache(t *testing.T) {
	f := newFixture(t)
	file := testutil.CreateFile(t, f.db, f.blobs, 1, samplePNG(t))
	s := f.addShare(t, file.ID, 1)

	// 渲染期间另一个请求用完了额度
	f.blobs.onRead = func() {
		f.db.Model(&models.ShareLink{}).Where("token = ?", s.Token).UpdateColumn("download_count", 1)
	}

	_, err := f.svc.PreviewViaShare(context.Background(), s.Token, access.RequestContext{})
	assert.ErrorIs(t, err, xerr.ErrShareUnavailable)
	assert.Equal(t, 1, f.cache.dels)
	assert.Equal(t, 0, f.cache.Len())
	assert.Equal(t, int64(0), f.accessLogs(t, file.ID))
}

func TestPreview_ExhaustedShareLogsFailure(t *testing.T) {
	f := newFixture(t)
	file := testutil.CreateFile(t, f.db, f.blobs, 1, samplePNG(t))
	s := f.addShare(t, file.ID, 0)

	_, err := f.svc.PreviewViaShare(context.Background(), s.Token, access.RequestContext{})
	require.Error(t, err)

	var logs []models.FailedAccessLog
	require.NoError(t, f.db.Where("file_id = ?", file.ID).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, "limit_exceeded", logs[0].Reason)
}
