package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"soundvault/internal/config"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "8080", cfg.ServicePort)
	require.Equal(t, int64(255*1024), cfg.GetChunkSizeBytes())
	require.Equal(t, int64(50*1024*1024), cfg.GetMaxUploadSizeBytes())
	require.Equal(t, 3, cfg.CodeRetries)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CHUNK_SIZE_KB", "128")
	t.Setenv("MAX_UPLOAD_SIZE_MB", "10")
	t.Setenv("MYSQL_HOST", "db.internal")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	require.Equal(t, int64(128*1024), cfg.GetChunkSizeBytes())
	require.Equal(t, int64(10*1024*1024), cfg.GetMaxUploadSizeBytes())
	require.Contains(t, cfg.GetDSN(), "db.internal:3306")
}

func TestInvalidChunkSize(t *testing.T) {
	t.Setenv("CHUNK_SIZE_KB", "-1")
	_, err := config.LoadConfig()
	require.Error(t, err)
}
