package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/listwizard/internal/sweeper"
	"github.com/rendis/listwizard/internal/wizard"
)

// isolate points the settings file at a temp home and clears env overrides.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range configKeys {
		t.Setenv(envPrefix+strings.ToUpper(key), "")
	}
	return home
}

func writeSettings(t *testing.T, home, body string) {
	t.Helper()
	dir := filepath.Join(home, ".listwizard")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.json"), []byte(body), 0o644))
}

func TestLoadConfig_Defaults(t *testing.T) {
	home := isolate(t)

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":4300", cfg.ListenAddr)
	assert.Equal(t, filepath.Join(home, ".listwizard", "listwizard.db"), cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, string(wizard.ModeDevelopment), cfg.Mode)
	assert.Equal(t, sweeper.DefaultCron, cfg.AutosaveCron)
	assert.Equal(t, 30*time.Minute, cfg.IdleTimeout)
	assert.Equal(t, wizard.DefaultCompletionDelay, cfg.CompletionDelay)
	assert.Equal(t, 24*time.Hour, cfg.VacuumInterval)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_SettingsFile(t *testing.T) {
	home := isolate(t)
	writeSettings(t, home, `{
		"mode": "production",
		"idle_timeout": "45m",
		"completion_delay": 2,
		"autosave_cron": "*/5 * * * *",
		"vacuum_interval": "6h",
		"unknown_key": true
	}`)

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Mode)
	assert.Equal(t, 45*time.Minute, cfg.IdleTimeout)
	assert.Equal(t, 2*time.Second, cfg.CompletionDelay)
	assert.Equal(t, "*/5 * * * *", cfg.AutosaveCron)
	assert.Equal(t, 6*time.Hour, cfg.VacuumInterval)
	assert.Equal(t, ":4300", cfg.ListenAddr)
}

func TestLoadConfig_EnvOverridesSettings(t *testing.T) {
	home := isolate(t)
	writeSettings(t, home, `{"log_level": "warn", "idle_timeout": "45m"}`)
	t.Setenv("LISTWIZARD_LOG_LEVEL", "debug")
	t.Setenv("LISTWIZARD_IDLE_TIMEOUT", "90")
	t.Setenv("LISTWIZARD_LISTEN_ADDR", ":9999")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 90*time.Second, cfg.IdleTimeout)
	assert.Equal(t, ":9999", cfg.ListenAddr)
}

func TestLoadConfig_MalformedSettings(t *testing.T) {
	home := isolate(t)
	writeSettings(t, home, `{not json`)

	_, err := loadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_BadDuration(t *testing.T) {
	isolate(t)
	t.Setenv("LISTWIZARD_RETENTION", "soon")

	_, err := loadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retention")
}

func TestConfigValidate(t *testing.T) {
	cfg := defaultConfig()
	cfg.Mode = "staging"
	assert.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.IdleTimeout = -time.Second
	assert.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.DBPath = ""
	assert.Error(t, cfg.Validate())
}

func TestRootFlagsOverrideConfig(t *testing.T) {
	isolate(t)
	t.Setenv("LISTWIZARD_MODE", "production")

	opts := &rootOptions{dbPath: "/tmp/x.db", logLevel: "error"}
	cfg, err := opts.config()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.db", cfg.DBPath)
	assert.Equal(t, "error", cfg.LogLevel)
	assert.Equal(t, "production", cfg.Mode)
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "file:/var/lib/w.db", dsn("/var/lib/w.db"))
	assert.Equal(t, "file:w.db", dsn("file:w.db"))
	assert.Equal(t, "libsql://db.example.com", dsn("libsql://db.example.com"))
}
