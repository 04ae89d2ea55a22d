package share

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/config"
	"github.com/3Eeeecho/go-fileshare/internal/models"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/notify"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/storage"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/testutil"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fileshare/internal/repositories"
	"github.com/3Eeeecho/go-fileshare/internal/services/access"
	"github.com/3Eeeecho/go-fileshare/internal/services/audit"
	"github.com/3Eeeecho/go-fileshare/internal/services/explorer"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const owner uint64 = 1

type fakeNotifier struct {
	mu      sync.Mutex
	notices []notify.FileShareNotice
	err     error
}

func (f *fakeNotifier) SendFileShareNotice(_ context.Context, notice notify.FileShareNotice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, notice)
	return f.err
}

type fixture struct {
	db       *gorm.DB
	blobs    *storage.MemoryStorageService
	notifier *fakeNotifier
	svc      ShareService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	blobs := testutil.NewBlobStore()
	notifier := &fakeNotifier{}
	fileRepo := repositories.NewFileRepository(db)
	logRepo := repositories.NewAccessLogRepository(db)
	svc := NewShareService(
		repositories.NewShareRepository(db),
		fileRepo,
		audit.NewService(logRepo, fileRepo, nil),
		explorer.NewTransactionManager(db),
		blobs,
		notifier,
		&config.ShareConfig{FrontendURL: "https://share.example.com/", TokenBytes: 16},
	)
	return &fixture{db: db, blobs: blobs, notifier: notifier, svc: svc}
}

func (f *fixture) addShare(t *testing.T, fileID string, expiresAt time.Time, max, count int64) *models.ShareLink {
	t.Helper()
	s := &models.ShareLink{
		Token:          uuid.NewString(),
		FileID:         fileID,
		RecipientEmail: "bob@example.com",
		ExpiresAt:      expiresAt.UTC(),
		MaxDownload:    max,
		DownloadCount:  count,
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

func input(fileID string, max int64) CreateShareInput {
	return CreateShareInput{
		FileID:      fileID,
		Email:       "bob@example.com",
		ExpiresAt:   time.Now().Add(24 * time.Hour),
		MaxDownload: max,
		Note:        "quarterly numbers",
	}
}

func TestCreateShare_DeductsQuota(t *testing.T) {
	f := newFixture(t)
	file := testutil.CreateFile(t, f.db, f.blobs, owner, []byte("x"), testutil.WithLimit(10, 2))

	res, err := f.svc.CreateShare(context.Background(), owner, input(file.ID, 3))
	require.NoError(t, err)
	assert.NoError(t, res.NotifyErr)
	assert.True(t, strings.HasPrefix(res.ShareURL, "https://share.example.com/preview/token/"))
	assert.Equal(t, res.Share.Token, strings.TrimPrefix(res.ShareURL, "https://share.example.com/preview/token/"))
	assert.Len(t, res.Share.Token, 32)

	reloaded := testutil.Reload(t, f.db, file.ID)
	require.NotNil(t, reloaded.DownloadLimit)
	assert.Equal(t, int64(7), *reloaded.DownloadLimit)

	require.Len(t, f.notifier.notices, 1)
	assert.Equal(t, "bob@example.com", f.notifier.notices[0].To)
	assert.Equal(t, res.ShareURL, f.notifier.notices[0].ShareURL)
	assert.Equal(t, file.OriginalName, f.notifier.notices[0].FileName)
}

func TestCreateShare_QuotaExceededLeavesLimitUnchanged(t *testing.T) {
	f := newFixture(t)
	file := testutil.CreateFile(t, f.db, f.blobs, owner, []byte("x"), testutil.WithLimit(5, 3))

	_, err := f.svc.CreateShare(context.Background(), owner, input(file.ID, 3))
	assert.ErrorIs(t, err, xerr.ErrQuotaExceeded)

	reloaded := testutil.Reload(t, f.db, file.ID)
	assert.Equal(t, int64(5), *reloaded.DownloadLimit)
	var shares int64
	require.NoError(t, f.db.Model(&models.ShareLink{}).Where("file_id = ?", file.ID).Count(&shares).Error)
	assert.Zero(t, shares)
	assert.Empty(t, f.notifier.notices)
}

func TestCreateShare_UnlimitedFileNotDeducted(t *testing.T) {
	f := newFixture(t)
	file := testutil.CreateFile(t, f.db, f.blobs, owner, []byte("x"))

	_, err := f.svc.CreateShare(context.Background(), owner, input(file.ID, 50))
	require.NoError(t, err)
	assert.Nil(t, testutil.Reload(t, f.db, file.ID).DownloadLimit)
}

func TestCreateShare_NotifyFailureKeepsShare(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("smtp: connection refused")
	file := testutil.CreateFile(t, f.db, f.blobs, owner, []byte("x"), testutil.WithLimit(4, 0))

	res, err := f.svc.CreateShare(context.Background(), owner, input(file.ID, 2))
	require.NoError(t, err)
	assert.ErrorIs(t, res.NotifyErr, xerr.ErrNotifyFailed)

	var stored models.ShareLink
	require.NoError(t, f.db.Where("token = ?", res.Share.Token).First(&stored).Error)
	assert.Equal(t, int64(2), *testutil.Reload(t, f.db, file.ID).DownloadLimit)
}

func TestCreateShare_ConcurrentSharesShareOneBudget(t *testing.T) {
	f := newFixture(t)
	file := testutil.CreateFile(t, f.db, f.blobs, owner, []byte("x"), testutil.WithLimit(5, 0))

	const workers = 5
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  int
		exceeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreateShare(context.Background(), owner, input(file.ID, 2))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, xerr.ErrQuotaExceeded):
				exceeded++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, created)
	assert.Equal(t, workers-2, exceeded)

	var reserved int64
	require.NoError(t, f.db.Model(&models.ShareLink{}).Where("file_id = ?", file.ID).
		Select("COALESCE(SUM(max_download), 0)").Scan(&reserved).Error)
	assert.Equal(t, int64(4), reserved)
	assert.Equal(t, int64(1), *testutil.Reload(t, f.db, file.ID).DownloadLimit)
}

// failingShareRepo 插入分享记录时失败
type failingShareRepo struct {
	repositories.ShareRepository
}

func (failingShareRepo) Create(*gorm.DB, *models.ShareLink) error {
	return errors.New("insert share link: disk full")
}

func TestCreateShare_InsertFailureRollsBackReservation(t *testing.T) {
	f := newFixture(t)
	fileRepo := repositories.NewFileRepository(f.db)
	logRepo := repositories.NewAccessLogRepository(f.db)
	svc := NewShareService(
		failingShareRepo{ShareRepository: repositories.NewShareRepository(f.db)},
		fileRepo,
		audit.NewService(logRepo, fileRepo, nil),
		explorer.NewTransactionManager(f.db),
		f.blobs,
		f.notifier,
		&config.ShareConfig{FrontendURL: "https://share.example.com", TokenBytes: 16},
	)
	file := testutil.CreateFile(t, f.db, f.blobs, owner, []byte("x"), testutil.WithLimit(5, 1))

	_, err := svc.CreateShare(context.Background(), owner, input(file.ID, 3))
	require.ErrorIs(t, err, xerr.ErrDatabaseError)

	assert.Equal(t, int64(5), *testutil.Reload(t, f.db, file.ID).DownloadLimit)
	var shares int64
	require.NoError(t, f.db.Model(&models.ShareLink{}).Where("file_id = ?", file.ID).Count(&shares).Error)
	assert.Zero(t, shares)
	assert.Empty(t, f.notifier.notices)
}

func TestCreateShare_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	file := testutil.CreateFile(t, f.db, f.blobs, owner, []byte("x"))

	_, err := f.svc.CreateShare(ctx, 2, input(file.ID, 1))
	assert.ErrorIs(t, err, xerr.ErrPermissionDenied)

	_, err = f.svc.CreateShare(ctx, owner, input("missing", 1))
	assert.ErrorIs(t, err, xerr.ErrFileNotFound)

	bad := input(file.ID, -1)
	_, err = f.svc.CreateShare(ctx, owner, bad)
	assert.ErrorIs(t, err, xerr.ErrInvalidParams)

	bad = input(file.ID, 1)
	bad.Email = " "
	_, err = f.svc.CreateShare(ctx, owner, bad)
	assert.ErrorIs(t, err, xerr.ErrInvalidParams)

	bad = input(file.ID, 1)
	bad.ExpiresAt = time.Time{}
	_, err = f.svc.CreateShare(ctx, owner, bad)
	assert.ErrorIs(t, err, xerr.ErrInvalidParams)
}

func TestResolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	file := testutil.CreateFile(t, f.db, f.blobs, owner, []byte("x"),
		testutil.WithVisibility(models.VisibilityPasswordProtected, "pw"))
	now := time.Now().UTC()

	live := f.addShare(t, file.ID, now.Add(time.Hour), 3, 1)
	info, err := f.svc.Resolve(ctx, live.Token, now)
	require.NoError(t, err)
	assert.Equal(t, file.OriginalName, info.FileName)
	assert.Equal(t, int64(2), info.RemainingDownloads)
	assert.True(t, info.PasswordRequired)

	past := f.addShare(t, file.ID, now.Add(-time.Hour), 3, 0)
	_, err = f.svc.Resolve(ctx, past.Token, now)
	assert.ErrorIs(t, err, xerr.ErrShareUnavailable)

	exhausted := f.addShare(t, file.ID, now.Add(2*time.Hour), 2, 2)
	_, err = f.svc.Resolve(ctx, exhausted.Token, now)
	assert.ErrorIs(t, err, xerr.ErrShareUnavailable)

	_, err = f.svc.Resolve(ctx, "unknown", now)
	assert.ErrorIs(t, err, xerr.ErrShareNotFound)
}

func TestAuthorize_WrongPasswordLogsRecipient(t *testing.T) {
	f := newFixture(t)
	file := testutil.CreateFile(t, f.db, f.blobs, owner, []byte("x"),
		testutil.WithVisibility(models.VisibilityPasswordProtected, "pw"))
	s := f.addShare(t, file.ID, time.Now().Add(time.Hour), 3, 0)

	_, err := f.svc.Authorize(context.Background(), s.Token, access.RequestContext{Password: testutil.Ptr("nope")})
	require.ErrorIs(t, err, xerr.ErrAccessDenied)
	reason, _ := xerr.DenyReason(err)
	assert.Equal(t, "invalid_password", reason)

	var logs []models.FailedAccessLog
	require.NoError(t, f.db.Where("file_id = ?", file.ID).Find(&logs).Error)
	require.Len(t, logs, 1)
	require.NotNil(t, logs[0].Email)
	assert.Equal(t, "bob@example.com", *logs[0].Email)

	got, err := f.svc.Authorize(context.Background(), s.Token, access.RequestContext{Password: testutil.Ptr("pw")})
	require.NoError(t, err)
	assert.Equal(t, file.ID, got.File.ID)
	assert.Equal(t, int64(0), f.shareCount(t, s.Token))
}

func TestConsume_ConcurrentNeverExceedsMax(t *testing.T) {
	f := newFixture(t)
	file := testutil.CreateFile(t, f.db, f.blobs, owner, []byte("x"))
	s := f.addShare(t, file.ID, time.Now().Add(time.Hour), 3, 0)

	const workers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		denied    int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.svc.Consume(context.Background(), s.Token, access.RequestContext{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, xerr.ErrShareUnavailable):
				denied++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, successes)
	assert.Equal(t, workers-3, denied)
	assert.Equal(t, int64(3), f.shareCount(t, s.Token))
}

func TestConsume_ExpiredParentFile(t *testing.T) {
	f := newFixture(t)
	file := testutil.CreateFile(t, f.db, f.blobs, owner, []byte("x"), testutil.WithExpiry(time.Now().Add(-time.Minute)))
	s := f.addShare(t, file.ID, time.Now().Add(time.Hour), 3, 0)

	_, _, err := f.svc.Consume(context.Background(), s.Token, access.RequestContext{})
	assert.ErrorIs(t, err, xerr.ErrShareUnavailable)
	reason, _ := xerr.DenyReason(err)
	assert.Equal(t, "expired", reason)
	assert.Equal(t, int64(0), f.shareCount(t, s.Token))
}

func TestDownloadViaShare(t *testing.T) {
	f := newFixture(t)
	file := testutil.CreateFile(t, f.db, f.blobs, owner, []byte("payload"))
	s := f.addShare(t, file.ID, time.Now().Add(time.Hour), 2, 0)

	res, err := f.svc.DownloadViaShare(context.Background(), s.Token, access.RequestContext{ClientIP: "9.9.9.9"})
	require.NoError(t, err)
	data, err := io.ReadAll(res.Reader)
	require.NoError(t, err)
	res.Reader.Close()
	assert.Equal(t, []byte("payload"), data)
	assert.Equal(t, int64(1), f.shareCount(t, s.Token))
	// 分享下载不占用文件自身的计数
	assert.Equal(t, int64(0), testutil.Reload(t, f.db, file.ID).DownloadCount)

	var logs []models.AccessLog
	require.NoError(t, f.db.Where("file_id = ?", file.ID).Find(&logs).Error)
	require.Len(t, logs, 1)
	require.NotNil(t, logs[0].Email)
	assert.Equal(t, "bob@example.com", *logs[0].Email)
}

func TestDownloadViaShare_BlobFailureReleases(t *testing.T) {
	f := newFixture(t)
	file := testutil.CreateFile(t, f.db, nil, owner, []byte("payload"))
	s := f.addShare(t, file.ID, time.Now().Add(time.Hour), 1, 0)

	_, err := f.svc.DownloadViaShare(context.Background(), s.Token, access.RequestContext{})
	assert.ErrorIs(t, err, xerr.ErrStorageError)
	assert.Equal(t, int64(0), f.shareCount(t, s.Token))
}

func TestListShares(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	file := testutil.CreateFile(t, f.db, f.blobs, owner, []byte("x"))
	for i := 0; i < 3; i++ {
		_, err := f.svc.CreateShare(ctx, owner, input(file.ID, 1))
		require.NoError(t, err)
	}

	page, err := f.svc.ListShares(ctx, owner, file.ID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Data, 2)

	_, err = f.svc.ListShares(ctx, 2, file.ID, 1, 2)
	assert.ErrorIs(t, err, xerr.ErrPermissionDenied)
}
