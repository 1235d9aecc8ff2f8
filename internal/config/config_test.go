package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "childid", cfg.Input.SubjectColumn)
	assert.Equal(t, "wave", cfg.Input.WaveColumn)
	assert.Equal(t, "fs_scale", cfg.Derive.ScaleColumn)
	assert.Equal(t, "fs_status", cfg.Derive.StatusColumn)
	assert.InDelta(t, 2.0, cfg.Derive.StatusThreshold, 0.001)
	assert.Equal(t, "tch_close", cfg.Derive.ClosenessColumn)
	assert.Equal(t, "tch_conflict", cfg.Derive.ConflictColumn)
	assert.Equal(t, "ses", cfg.Derive.RankColumn)
	assert.Equal(t, 2, cfg.Derive.BaselineWave)
	assert.Equal(t, map[string]int{"2": 0, "4": 1, "9": 2}, cfg.Derive.WaveTimes)
	assert.Equal(t, "panel-cli/1.0", cfg.Fetch.UserAgent)
	assert.Equal(t, 60, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "panel.db", cfg.Store.DatabaseURL)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
input:
  subject_column: pupil_id
derive:
  scale_column: reading_scale
  baseline_wave: 1
  wave_times:
    "1": 0
    "3": 1
store:
  driver: postgres
  database_url: postgres://localhost/panel
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "pupil_id", cfg.Input.SubjectColumn)
	assert.Equal(t, "reading_scale", cfg.Derive.ScaleColumn)
	assert.Equal(t, 1, cfg.Derive.BaselineWave)
	assert.Equal(t, map[string]int{"1": 0, "3": 1}, cfg.Derive.WaveTimes)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults still apply for unset values
	assert.Equal(t, "wave", cfg.Input.WaveColumn)
	assert.Equal(t, "fs_status", cfg.Derive.StatusColumn)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("PANEL_STORE_DRIVER", "sqlite")
	t.Setenv("PANEL_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("PANEL_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
