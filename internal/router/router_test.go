package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/config"
	"github.com/3Eeeecho/go-fileshare/internal/handlers"
	"github.com/3Eeeecho/go-fileshare/internal/models"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/cache"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/notify"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/storage"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/testutil"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/utils"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fileshare/internal/repositories"
	"github.com/3Eeeecho/go-fileshare/internal/services/admin"
	"github.com/3Eeeecho/go-fileshare/internal/services/audit"
	"github.com/3Eeeecho/go-fileshare/internal/services/explorer"
	"github.com/3Eeeecho/go-fileshare/internal/services/preview"
	"github.com/3Eeeecho/go-fileshare/internal/services/share"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const ownerID uint64 = 7

type testEnv struct {
	engine *gin.Engine
	db     *gorm.DB
	blobs  *storage.MemoryStorageService
	token  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.Config{
		Server:  config.ServerConfig{Mode: gin.TestMode},
		JWT:     config.JWTConfig{SecretKey: "test-secret", ExpiresIn: 60, Issuer: "go-fileshare"},
		Share:   config.ShareConfig{FrontendURL: "http://localhost:3000", TokenBytes: 24},
		Preview: config.PreviewConfig{TTL: time.Minute, MaxEntries: 16},
	}

	db := testutil.NewDB(t)
	blobs := testutil.NewBlobStore()
	fileRepo := repositories.NewFileRepository(db)
	shareRepo := repositories.NewShareRepository(db)
	logRepo := repositories.NewAccessLogRepository(db)
	userRepo := repositories.NewUserRepository(db)
	tm := explorer.NewTransactionManager(db)

	notifier, err := notify.NewNotifier(&config.MailConfig{Provider: "log"})
	require.NoError(t, err)

	auditService := audit.NewService(logRepo, fileRepo, nil)
	fileService := explorer.NewFileService(fileRepo, logRepo, auditService, tm, blobs)
	shareService := share.NewShareService(shareRepo, fileRepo, auditService, tm, blobs, notifier, &cfg.Share)
	renderer := preview.NewRenderer(shareRepo, blobs, cache.NewLRUCache(cfg.Preview.MaxEntries, cfg.Preview.TTL), cfg.Preview.TTL)

	engine := InitRouter(Handlers{
		Auth:  handlers.NewAuthHandler(admin.NewAuthService(userRepo, &cfg.JWT)),
		User:  handlers.NewUserHandler(admin.NewUserService(userRepo, fileRepo, shareRepo)),
		File:  handlers.NewFileHandler(fileService, auditService),
		Share: handlers.NewShareHandler(shareService, preview.NewPreviewService(shareService, renderer, auditService)),
	}, cfg)

	token, err := utils.GenerateToken(ownerID, "owner", "owner@example.com", cfg.JWT.SecretKey, cfg.JWT.Issuer, cfg.JWT.ExpiresIn)
	require.NoError(t, err)
	return &testEnv{engine: engine, db: db, blobs: blobs, token: token}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var resp envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestPing(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/ping", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pong")
}

func TestSwaggerDoc(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/swagger/doc.json", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/shares/{token}/download")
	assert.Contains(t, w.Body.String(), `"basePath": "/api/v1"`)
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/v1/nope", nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, xerr.NotFoundCode, decode(t, w).Code)
}

func TestAuthenticatedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/files/stats", nil, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/files/stats", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w = httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, xerr.TokenInvalidCode, decode(t, w).Code)
}

func TestFileDownload(t *testing.T) {
	env := newTestEnv(t)

	t.Run("public file is served and counted", func(t *testing.T) {
		f := testutil.CreateFile(t, env.db, env.blobs, ownerID, []byte("hello"), testutil.WithLimit(2, 0))
		w := env.do(t, http.MethodGet, "/api/v1/files/"+f.ID+"/download", nil, false)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "hello", w.Body.String())
		assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
		assert.EqualValues(t, 1, testutil.Reload(t, env.db, f.ID).DownloadCount)
	})

	t.Run("wrong password carries the denial reason", func(t *testing.T) {
		f := testutil.CreateFile(t, env.db, env.blobs, ownerID, []byte("secret"),
			testutil.WithVisibility(models.VisibilityPasswordProtected, "s3cret"))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/files/"+f.ID+"/download", nil)
		req.Header.Set(handlers.PasswordHeader, "wrong")
		w := httptest.NewRecorder()
		env.engine.ServeHTTP(w, req)

		require.Equal(t, http.StatusForbidden, w.Code)
		resp := decode(t, w)
		assert.Equal(t, xerr.PasswordInvalidCode, resp.Code)
		assert.JSONEq(t, `{"reason":"invalid_password"}`, string(resp.Data))
	})

	t.Run("correct password in query", func(t *testing.T) {
		f := testutil.CreateFile(t, env.db, env.blobs, ownerID, []byte("secret"),
			testutil.WithVisibility(models.VisibilityPasswordProtected, "s3cret"))
		w := env.do(t, http.MethodGet, "/api/v1/files/"+f.ID+"/download?password=s3cret", nil, false)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "secret", w.Body.String())
	})

	t.Run("private file is only served to the owner", func(t *testing.T) {
		f := testutil.CreateFile(t, env.db, env.blobs, ownerID, []byte("mine"),
			testutil.WithVisibility(models.VisibilityPrivate, ""))

		w := env.do(t, http.MethodGet, "/api/v1/files/"+f.ID+"/download", nil, false)
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = env.do(t, http.MethodGet, "/api/v1/files/"+f.ID+"/download", nil, true)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "mine", w.Body.String())
	})

	t.Run("missing file", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/files/does-not-exist/download", nil, false)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, xerr.FileNotFoundCode, decode(t, w).Code)
	})
}

func TestShareLifecycle(t *testing.T) {
	env := newTestEnv(t)
	f := testutil.CreateFile(t, env.db, env.blobs, ownerID, []byte("shared content"))

	w := env.do(t, http.MethodPost, "/api/v1/shares", gin.H{
		"file_id":      f.ID,
		"email":        "friend@example.com",
		"expires_at":   time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
		"max_download": 1,
	}, true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Share    models.ShareLink `json:"share"`
		ShareURL string           `json:"share_url"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &created))
	token := created.Share.Token
	require.NotEmpty(t, token)
	assert.Equal(t, "http://localhost:3000/preview/token/"+token, created.ShareURL)

	w = env.do(t, http.MethodGet, "/api/v1/shares/"+token, nil, false)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/shares/"+token+"/download", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "shared content", w.Body.String())

	// 次数用完与不存在的 token 对外返回相同结果
	exhausted := env.do(t, http.MethodPost, "/api/v1/shares/"+token+"/download", nil, false)
	unknown := env.do(t, http.MethodPost, "/api/v1/shares/unknown-token/download", nil, false)
	for _, w := range []*httptest.ResponseRecorder{exhausted, unknown} {
		assert.Equal(t, http.StatusNotFound, w.Code)
		resp := decode(t, w)
		assert.Equal(t, xerr.ShareUnavailableCode, resp.Code)
		assert.Equal(t, xerr.ErrShareUnavailable.Error(), resp.Message)
	}

	w = env.do(t, http.MethodGet, "/api/v1/files/"+f.ID+"/shares", nil, true)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateShareValidation(t *testing.T) {
	env := newTestEnv(t)
	f := testutil.CreateFile(t, env.db, env.blobs, ownerID, []byte("x"), testutil.WithLimit(1, 0))

	t.Run("missing max_download", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/shares", gin.H{
			"file_id":    f.ID,
			"email":      "friend@example.com",
			"expires_at": time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
		}, true)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("quota exceeded", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/shares", gin.H{
			"file_id":      f.ID,
			"email":        "friend@example.com",
			"expires_at":   time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
			"max_download": 5,
		}, true)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, xerr.QuotaExceededCode, decode(t, w).Code)
	})
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/users/me", nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, xerr.UserNotFoundCode, decode(t, w).Code)

	require.NoError(t, env.db.Create(&models.User{ID: ownerID, Username: "owner", PasswordHash: "x", Email: "owner@example.com"}).Error)
	testutil.CreateFile(t, env.db, env.blobs, ownerID, []byte("mine"))

	w = env.do(t, http.MethodGet, "/api/v1/users/me", nil, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var profile admin.Profile
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &profile))
	assert.Equal(t, "owner", profile.User.Username)
	assert.Equal(t, int64(1), profile.Files.TotalFiles)
	assert.Zero(t, profile.LiveShares)
}
