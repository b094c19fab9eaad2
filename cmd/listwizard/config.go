package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/rendis/listwizard/internal/sweeper"
	"github.com/rendis/listwizard/internal/wizard"
)

// Config holds all listwizard configuration.
// Priority: flags > env vars > settings.json > defaults.
type Config struct {
	ListenAddr      string        `json:"listen_addr"`
	DBPath          string        `json:"db_path"`
	LogLevel        string        `json:"log_level"`
	Mode            string        `json:"mode"`
	AutosaveCron    string        `json:"autosave_cron"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	CompletionDelay time.Duration `json:"completion_delay"`
	Retention       time.Duration `json:"retention"`
	VacuumInterval  time.Duration `json:"vacuum_interval"`
}

const envPrefix = "LISTWIZARD_"

func defaultConfig() Config {
	return Config{
		ListenAddr:      ":4300",
		DBPath:          filepath.Join(listwizardDir(), "listwizard.db"),
		LogLevel:        "info",
		Mode:            string(wizard.ModeDevelopment),
		AutosaveCron:    sweeper.DefaultCron,
		IdleTimeout:     30 * time.Minute,
		CompletionDelay: wizard.DefaultCompletionDelay,
		Retention:       time.Hour,
		VacuumInterval:  24 * time.Hour,
	}
}

func listwizardDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".listwizard"
	}
	return filepath.Join(home, ".listwizard")
}

func settingsPath() string {
	return filepath.Join(listwizardDir(), "settings.json")
}

// loadConfig layers settings.json and LISTWIZARD_* env vars over the
// defaults. A missing settings file is not an error; a malformed one is.
func loadConfig() (Config, error) {
	cfg := defaultConfig()

	// Layer 2: settings.json. Values are loose JSON ("30m", 1800, "true").
	if data, err := os.ReadFile(settingsPath()); err == nil {
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", settingsPath(), err)
		}
		if err := cfg.apply(raw); err != nil {
			return cfg, fmt.Errorf("%s: %w", settingsPath(), err)
		}
	}

	// Layer 3: env vars override.
	env := make(map[string]any)
	for _, key := range configKeys {
		if v, ok := os.LookupEnv(envPrefix + strings.ToUpper(key)); ok && v != "" {
			env[key] = v
		}
	}
	if err := cfg.apply(env); err != nil {
		return cfg, fmt.Errorf("env: %w", err)
	}
	return cfg, nil
}

var configKeys = []string{
	"listen_addr", "db_path", "log_level", "mode",
	"autosave_cron", "idle_timeout", "completion_delay", "retention",
	"vacuum_interval",
}

func (c *Config) apply(raw map[string]any) error {
	for key, v := range raw {
		var err error
		switch key {
		case "listen_addr":
			c.ListenAddr, err = cast.ToStringE(v)
		case "db_path":
			c.DBPath, err = cast.ToStringE(v)
		case "log_level":
			c.LogLevel, err = cast.ToStringE(v)
		case "mode":
			c.Mode, err = cast.ToStringE(v)
		case "autosave_cron":
			c.AutosaveCron, err = cast.ToStringE(v)
		case "idle_timeout":
			c.IdleTimeout, err = toDuration(v)
		case "completion_delay":
			c.CompletionDelay, err = toDuration(v)
		case "retention":
			c.Retention, err = toDuration(v)
		case "vacuum_interval":
			c.VacuumInterval, err = toDuration(v)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

// toDuration reads "30m" style strings; bare numbers are seconds.
func toDuration(v any) (time.Duration, error) {
	switch t := v.(type) {
	case float64, int, int64:
		n, err := cast.ToInt64E(t)
		return time.Duration(n) * time.Second, err
	case string:
		if n, err := cast.ToInt64E(t); err == nil {
			return time.Duration(n) * time.Second, nil
		}
		return cast.ToDurationE(t)
	}
	return cast.ToDurationE(v)
}

// Validate checks the values that would otherwise fail late.
func (c Config) Validate() error {
	if _, err := wizard.ParseMode(c.Mode); err != nil {
		return err
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path is empty")
	}
	if c.IdleTimeout < 0 || c.CompletionDelay < 0 || c.Retention < 0 || c.VacuumInterval < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}
