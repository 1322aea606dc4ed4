package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettingsDefaults(t *testing.T) {
	home := t.TempDir()
	cfg, err := LoadSettings(home, filepath.Join(home, "matchpipe.yml"))
	require.NoError(t, err)

	assert.Equal(t, home, cfg.Home)
	assert.Equal(t, "America/New_York", cfg.TimeZone)
	assert.Equal(t, 60*time.Second, cfg.PollInterval)
	assert.Equal(t, "https://api.thesports.com/v1/football/", cfg.API.BaseURL)
	assert.Equal(t, 30, cfg.API.Concurrency)
	assert.Equal(t, "fifo", cfg.Ledger.Selection)
	assert.Equal(t, 5, cfg.Ledger.DeadLetterAfter)
	assert.Zero(t, cfg.Suppression.Retention)
	assert.Equal(t, filepath.Join(home, "var", "archive"), filepath.Clean(cfg.Archive.LocalDir))

	fetch := cfg.Stage("fetch")
	assert.Equal(t, 10, fetch.RotationThreshold)
	assert.Equal(t, "truncate", fetch.RotationPolicy)
	assert.Equal(t, "fetch_rotating_logs", fetch.ArchiveFolder)

	overs := cfg.Stage("alert_overs")
	assert.Equal(t, "retain", overs.RotationPolicy)
}

func TestLoadSettingsOverrides(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, "matchpipe.yml")
	doc := `
time_zone: UTC
poll_interval_sec: 15
api:
  user: acct
  secret: s3cret
  concurrency: 5
archive:
  bucket: pipeline-archive
  region: us-west-2
ledger:
  selection: newest
  dead_letter_after: 2
suppression:
  retention_hours: 48
stages:
  fetch:
    rotation_threshold: 3
    rotation_policy: retain
    archive_folder: raw_feed
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := LoadSettings(home, path)
	require.NoError(t, err)

	assert.Equal(t, "UTC", cfg.TimeZone)
	assert.Equal(t, 15*time.Second, cfg.PollInterval)
	assert.Equal(t, "acct", cfg.API.User)
	assert.Equal(t, 5, cfg.API.Concurrency)
	assert.Equal(t, "pipeline-archive", cfg.Archive.Bucket)
	assert.Equal(t, "newest", cfg.Ledger.Selection)
	assert.Equal(t, 2, cfg.Ledger.DeadLetterAfter)
	assert.Equal(t, 48*time.Hour, cfg.Suppression.Retention)

	fetch := cfg.Stage("fetch")
	assert.Equal(t, 3, fetch.RotationThreshold)
	assert.Equal(t, "retain", fetch.RotationPolicy)
	assert.Equal(t, "raw_feed", fetch.ArchiveFolder)

	// Unmentioned stages keep their defaults.
	assert.Equal(t, 50, cfg.Stage("merge").RotationThreshold)
}

func TestLoadSettingsMalformed(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, "matchpipe.yml")
	require.NoError(t, os.WriteFile(path, []byte("stages: ["), 0o644))

	_, err := LoadSettings(home, path)
	require.Error(t, err)
}
