package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(`{}`))
	require.NoError(t, err)

	assert.Equal(t, "localhost:4455", cfg.OBS.Address)
	assert.Equal(t, 10*time.Second, cfg.OBS.RequestTimeout.Duration())
	assert.Equal(t, time.Second, cfg.OBS.MinRetryBackoff.Duration())
	assert.Equal(t, 2*time.Minute, cfg.OBS.MaxRetryBackoff.Duration())
	assert.Equal(t, 2.0, cfg.OBS.RetryMultiplier)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "./obstrigger.sqlite", cfg.Database.Path)
	assert.Equal(t, 30, cfg.Ledger.RetentionDays)
	assert.Equal(t, 1, cfg.EventBus.GetWorkers())
	assert.Equal(t, 100, cfg.EventBus.GetQueueSize())
	assert.Equal(t, 5*time.Second, cfg.GetShutdownTimeout())
}

func TestParse_TriggersAndEnv(t *testing.T) {
	t.Setenv("OBS_PASSWORD", "hunter2")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := Parse([]byte(`
obs:
  address: "  10.0.0.5:4455  "
  password: ${OBS_PASSWORD}
  max_reconnects: 3
log:
  level: ${LOG_LEVEL:debug}
triggers:
  - on: OnOBSSwitchScenes Intro
    actions:
      - OBS source Cam on
      - OBS send intro
  - on: OnOBSStreamStarted
`))
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5:4455", cfg.OBS.Address)
	assert.Equal(t, "hunter2", cfg.OBS.Password)
	assert.Equal(t, 3, cfg.OBS.MaxReconnects)
	assert.Equal(t, "debug", cfg.Log.Level)

	require.Len(t, cfg.Triggers, 2)
	assert.Equal(t, "OnOBSSwitchScenes Intro", cfg.Triggers[0].On)
	assert.Equal(t, []string{"OBS source Cam on", "OBS send intro"}, cfg.Triggers[0].Actions)
	assert.Empty(t, cfg.Triggers[1].Actions)
}

func TestParse_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"negative cleanup interval", "ledger:\n  cleanup_interval: -1h\n"},
		{"negative request timeout", "obs:\n  request_timeout: -1s\n"},
		{"negative min backoff", "obs:\n  min_retry_backoff: -1s\n"},
		{"negative max backoff", "obs:\n  max_retry_backoff: -5s\n"},
		{"max backoff below min", "obs:\n  min_retry_backoff: 10s\n  max_retry_backoff: 1s\n"},
		{"multiplier below one", "obs:\n  retry_multiplier: 0.5\n"},
		{"negative multiplier", "obs:\n  retry_multiplier: -2\n"},
		{"negative max reconnects", "obs:\n  max_reconnects: -1\n"},
		{"negative keepalive", "obs:\n  keepalive: -5s\n"},
		{"negative retention", "ledger:\n  retention_days: -3\n"},
		{"negative shutdown timeout", "shutdown_timeout: -1s\n"},
		{"negative rate limit", "webhook:\n  rate_limit: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParse_AcceptsBoundaryValues(t *testing.T) {
	cfg, err := Parse([]byte("obs:\n  min_retry_backoff: 2s\n  max_retry_backoff: 2s\n  retry_multiplier: 1\n"))
	require.NoError(t, err)
	assert.Equal(t, 1.0, cfg.OBS.RetryMultiplier)
	assert.Equal(t, 5*time.Second, cfg.OBS.KeepAlive.Duration())
}

func TestParse_BadDuration(t *testing.T) {
	_, err := Parse([]byte("obs:\n  request_timeout: soon\n"))
	assert.Error(t, err)
}

func TestLoad_SettingsFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "settings", "obs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings", "obs", "address.txt"), []byte("192.168.1.20:4455\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings", "obs", "password.txt"), []byte("  s3cret \r\n"), 0o644))

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
obs:
  address_file: settings/obs/address.txt
  password_file: settings/obs/password.txt
script: triggers.lua
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.20:4455", cfg.OBS.Address)
	assert.Equal(t, "s3cret", cfg.OBS.Password)
	assert.Equal(t, filepath.Join(dir, "triggers.lua"), cfg.Script)
}

func TestLoad_MissingSettingsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("obs:\n  password_file: nope.txt\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
