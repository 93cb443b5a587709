package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JELLYFIN_API_KEY", "jf-key")
	t.Setenv("SONARR_API_KEY", "sonarr-key")
	t.Setenv("RADARR_API_KEY", "radarr-key")
	t.Setenv("CONFIG_DIR", t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8096", cfg.JellyfinURL)
	assert.Equal(t, "http://localhost:8989", cfg.SonarrURL)
	assert.Equal(t, "http://localhost:7878", cfg.RadarrURL)
	assert.True(t, cfg.UseExternalAPI)
	assert.True(t, cfg.IgnoreSpecialEpisodes)
	assert.True(t, cfg.AutoSyncEnabled)
	assert.Equal(t, 5*time.Second, cfg.SyncDelay)
	assert.Equal(t, 10*time.Minute, cfg.DedupMaxAge)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 60, cfg.MaxRequestsPerMinute)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "unmonitarr.db", filepath.Base(cfg.DatabaseFile))
	assert.False(t, cfg.EnhancementEnabled(), "no OMDb key configured")
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SONARR_URL", "http://sonarr:8989/")
	t.Setenv("SYNC_DELAY_SECONDS", "0")
	t.Setenv("OMDB_API_KEY", "omdb")
	t.Setenv("LOG_FORMAT", "JSON")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://sonarr:8989", cfg.SonarrURL)
	assert.Equal(t, time.Duration(0), cfg.SyncDelay)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.True(t, cfg.EnhancementEnabled())
}

func TestLoadRequiresAPIKeys(t *testing.T) {
	setRequired(t)
	t.Setenv("SONARR_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SONARR_API_KEY is required")
}

func TestLoadRejectsBadLogFormat(t *testing.T) {
	setRequired(t)
	t.Setenv("LOG_FORMAT", "xml")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOG_FORMAT")
}
