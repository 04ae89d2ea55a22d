package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFrom(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9090"
share:
  frontend_url: "https://share.example.com"
preview:
  cache: memory
  ttl: 30s
sweeper:
  spec: "*/10 * * * * *"
`), 0o600))

	cfg, err := LoadConfigFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "https://share.example.com", cfg.Share.FrontendURL)
	assert.Equal(t, "memory", cfg.Preview.Cache)
	assert.Equal(t, 30*time.Second, cfg.Preview.TTL)
	assert.Equal(t, "*/10 * * * * *", cfg.Sweeper.Spec)

	// 未出现在文件中的键使用默认值
	assert.Equal(t, 256, cfg.Preview.MaxEntries)
	assert.Equal(t, 24, cfg.Share.TokenBytes)
	assert.Equal(t, "minio", cfg.Storage.Type)
	assert.True(t, cfg.Sweeper.Enabled)
	assert.Equal(t, "log", cfg.Mail.Provider)
}

func TestLoadConfigFrom_EnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: \"9090\"\n"), 0o600))
	t.Setenv("GO_FILESHARE_SERVER_PORT", "7070")

	cfg, err := LoadConfigFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Server.Port)
}

func TestLoadConfigFrom_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))

	_, err := LoadConfigFrom(path)
	assert.Error(t, err)
}
