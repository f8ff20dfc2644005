package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/yt-sync-go/internal/domain"
)

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
storage:
  data_dir: `+dir+`
queue:
  thread_count: 5
  shutdown_timeout: 5s
events:
  redis:
    enabled: true
`), 0644))

	t.Setenv("YTSYNC_TOOLS_YTDLP_BINARY", "/opt/yt-dlp")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 5, cfg.Queue.ThreadCount)
	assert.Equal(t, 5*time.Second, cfg.Queue.ShutdownTimeout)
	assert.Equal(t, "/opt/yt-dlp", cfg.Tools.YTDLPBinary)
	assert.True(t, cfg.Events.Redis.Enabled)
	assert.Equal(t, "ytsync:jobs", cfg.Events.Redis.Channel)
	assert.Equal(t, filepath.Join(dir, "catalog.json"), cfg.Storage.CatalogPath())
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad port", "server:\n  port: 70000\n"},
		{"too many threads", "queue:\n  thread_count: 11\n"},
		{"archive without bucket", "archive:\n  enabled: true\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0644))

			_, err := LoadConfig(path)
			assert.ErrorContains(t, err, "invalid configuration")
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "media"), expandPath("~/media"))
	assert.Equal(t, home+"/.yt-sync", expandPath("$HOME/.yt-sync"))
	assert.Equal(t, "", expandPath(""))
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	cfg := domain.DefaultConfig()
	cfg.Storage.DataDir = t.TempDir()
	cfg.Queue.ThreadCount = 7
	cfg.Archive.Bucket = "media"

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Queue.ThreadCount)
	assert.Equal(t, "media", loaded.Archive.Bucket)
	assert.Equal(t, cfg.Queue.ShutdownTimeout, loaded.Queue.ShutdownTimeout)
}
