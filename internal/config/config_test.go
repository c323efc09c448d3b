package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "filesystem", cfg.StorageBackend)
	assert.Equal(t, 24*time.Hour, cfg.DefaultTTL)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("IMGD_LISTEN_ADDR", ":9090")
	t.Setenv("IMGD_DB_DRIVER", "postgres")
	t.Setenv("IMGD_DB_DSN", "postgres://localhost/imgd")
	t.Setenv("IMGD_DEFAULT_TTL", "2h")
	t.Setenv("IMGD_MAX_IMAGE_WIDTH", "640")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "postgres://localhost/imgd", cfg.DBDSN)
	assert.Equal(t, 2*time.Hour, cfg.DefaultTTL)
	assert.Equal(t, 640, cfg.MaxImageWidth)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "imgd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_addr: ":7070"
default_ttl: 30m
workers: 8
redis_addr: "localhost:6379"
`), 0644))
	t.Setenv("IMGD_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.ListenAddr)
	assert.Equal(t, 30*time.Minute, cfg.DefaultTTL)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
}

func TestEnvBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "imgd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_addr: \":7070\"\n"), 0644))
	t.Setenv("IMGD_CONFIG", path)
	t.Setenv("IMGD_LISTEN_ADDR", ":6060")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":6060", cfg.ListenAddr)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("IMGD_DB_DRIVER", "oracle")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsGCSWithoutBucket(t *testing.T) {
	t.Setenv("IMGD_STORAGE_BACKEND", "gcs")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("IMGD_DEFAULT_TTL", "soon")
	_, err := Load()
	assert.Error(t, err)
}
