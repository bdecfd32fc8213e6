// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test inside an empty working directory and home so no
// real config file or .env leaks in.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
	t.Setenv("HOME", dir)
	for _, name := range []string{
		"ALEO_ENV", "ALEO_LOG_LEVEL", "ALEO_LOG_DIR", "ALEO_OUTPUT_DIR", "ALEO_QUOTA",
		"ALEO_WEB_HOST", "ALEO_WEB_PORT", "ALEO_SERVER_PORT", "ALEO_REDIRECT_PORT",
		"ALEO_HISTORY_DB", "ALEO_NO_COLOR",
	} {
		t.Setenv(name, "")
	}
	return dir
}

func TestConfig_Default(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8002, cfg.Web.Port)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, 8080, cfg.Redirect.Port)
	assert.Equal(t, 600*time.Second, cfg.Quota())
	assert.Equal(t, 2*time.Second, cfg.RetryDelay())
	assert.Equal(t, filepath.Join("logs", "audit.log"), cfg.AuditLogPath())
	assert.Equal(t, filepath.Join("output", "url_shortener", "urls.json"), cfg.Redirect.StorePath)
}

func TestLoad_NoFileReturnsDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Web, cfg.Web)
}

func TestLoad_Formats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"toml", "aleopantest.toml", "[web]\nport = 9002\n[session]\nquota_secs = 120\n"},
		{"json", "aleopantest.json", `{"web":{"port":9002},"session":{"quota_secs":120}}`},
		{"yaml", "aleopantest.yaml", "web:\n  port: 9002\nsession:\n  quota_secs: 120\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			require.NoError(t, os.WriteFile(filepath.Join(dir, tt.file), []byte(tt.content), 0600))

			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, 9002, cfg.Web.Port)
			assert.Equal(t, 120, cfg.Session.QuotaSecs)
			// untouched sections keep their defaults
			assert.Equal(t, 5000, cfg.Server.Port)
			assert.Equal(t, "127.0.0.1", cfg.Web.Host)
		})
	}
}

func TestLoad_TOMLWinsOverJSON(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "aleopantest.toml"), []byte("[server]\nport = 7000\n"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "aleopantest.json"), []byte(`{"server":{"port":7001}}`), 0600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
}

func TestLoad_DotEnvAndOverrides(t *testing.T) {
	dir := isolate(t)
	os.Unsetenv("ALEO_WEB_PORT")
	os.Unsetenv("ALEO_ENV")
	t.Cleanup(func() {
		os.Unsetenv("ALEO_WEB_PORT")
		os.Unsetenv("ALEO_ENV")
	})
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ALEO_WEB_PORT=8123\nALEO_ENV=prod\n"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "aleopantest.toml"), []byte("[web]\nport = 9002\n"), 0600))
	t.Setenv("ALEO_QUOTA", "30")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8123, cfg.Web.Port)
	assert.Equal(t, "production", cfg.General.Environment)
	assert.Equal(t, 30, cfg.Session.QuotaSecs)
}

func TestLoad_InvalidFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[web\nport ="), 0600))
	_, err := LoadFrom(path)
	assert.Error(t, err)

	path = filepath.Join(dir, "range.yaml")
	require.NoError(t, os.WriteFile(path, []byte("web:\n  port: 70000\n"), 0600))
	_, err = LoadFrom(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "web.port")
}

func TestLoadFile_FixesPermissions(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "cfg.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0644))

	require.NoError(t, LoadFile(Default(), path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		field   string
		wantErr bool
	}{
		{"defaults", func(*Config) {}, "", false},
		{"bad log level", func(c *Config) { c.General.LogLevel = "loud" }, "general.log_level", true},
		{"bad environment", func(c *Config) { c.General.Environment = "qa" }, "general.environment", true},
		{"zero quota", func(c *Config) { c.Session.QuotaSecs = 0 }, "session.quota_secs", true},
		{"cap above hard limit", func(c *Config) { c.Session.InteractiveDurationCap = 3601 }, "session.interactive_duration_cap", true},
		{"retries", func(c *Config) { c.Orchestrator.MaxRetries = 0 }, "orchestrator.max_retries", true},
		{"port", func(c *Config) { c.Redirect.Port = 0 }, "redirect.port", true},
		{"rate", func(c *Config) { c.Web.RateLimit = -1 }, "web.rate_limit", true},
		{"upload size", func(c *Config) { c.Web.MaxUploadMB = 0 }, "web.max_upload_mb", true},
		{"proxy cidr ok", func(c *Config) { c.Web.TrustedProxies = []string{"10.0.0.0/8", "127.0.0.1"} }, "", false},
		{"proxy bad", func(c *Config) { c.Web.TrustedProxies = []string{"proxy.local"} }, "web.trusted_proxies", true},
		{"theme", func(c *Config) { c.UI.Theme = "neon" }, "ui.theme", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var verrs ValidateErrors
			require.ErrorAs(t, err, &verrs)
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}
}

func TestConfig_SetDefaultsDerivesPaths(t *testing.T) {
	cfg := &Config{General: GeneralConfig{OutputDir: "artifacts"}}
	cfg.SetDefaults()
	assert.Equal(t, filepath.Join("artifacts", "url_shortener", "urls.json"), cfg.Redirect.StorePath)
	assert.Equal(t, filepath.Join("artifacts", "history.db"), cfg.Storage.HistoryPath)
	assert.Equal(t, 8002, cfg.Web.Port)
	require.NoError(t, cfg.Validate())
}

func TestConfig_GetSet(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set("web.port", "9100"))
	v, err := cfg.Get("web.port")
	require.NoError(t, err)
	assert.Equal(t, 9100, v)

	require.NoError(t, cfg.Set("web.rate_limit", "2.5"))
	assert.Equal(t, 2.5, cfg.Web.RateLimit)

	require.NoError(t, cfg.Set("ui.no_color", "yes"))
	assert.True(t, cfg.UI.NoColor)

	require.NoError(t, cfg.Set("web.allowed_types", "png, pdf,"))
	assert.Equal(t, []string{"png", "pdf"}, cfg.Web.AllowedTypes)

	require.NoError(t, cfg.Set("session.max_threads", 12))
	assert.Equal(t, 12, cfg.Session.MaxThreads)

	assert.Error(t, cfg.Set("web.nope", "1"))
	assert.Error(t, cfg.Set("web.port.x", "1"))
	assert.Error(t, cfg.Set("web.port", "abc"))
	_, err = cfg.Get("")
	assert.Error(t, err)
}

func TestGetAllKeys(t *testing.T) {
	keys := GetAllKeys()
	assert.Contains(t, keys, "version")
	assert.Contains(t, keys, "web.trusted_proxies")
	assert.Contains(t, keys, "storage.in_memory")

	cfg := Default()
	for _, k := range keys {
		_, err := cfg.Get(k)
		assert.NoError(t, err, k)
	}
}

func TestConfig_CloneIsDeep(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()
	clone.Web.AllowedTypes[0] = "exe"
	clone.Web.Port = 1
	assert.Equal(t, "png", cfg.Web.AllowedTypes[0])
	assert.Equal(t, 8002, cfg.Web.Port)
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "nested", "saved.toml")

	cfg := Default()
	cfg.Web.Port = 9999
	cfg.Web.TrustedProxies = []string{"10.0.0.1"}
	require.NoError(t, SaveTOML(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, loaded.Web.Port)
	assert.Equal(t, []string{"10.0.0.1"}, loaded.Web.TrustedProxies)

	jsonPath := filepath.Join(dir, "saved.json")
	require.NoError(t, SaveJSON(cfg, jsonPath))
	loaded, err = LoadFrom(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, 9999, loaded.Web.Port)
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "aleopantest.toml")
	require.NoError(t, os.WriteFile(path, []byte("[web]\nrate_limit = 5.0\n"), 0600))

	changes := make(chan *Config, 4)
	w, err := Watch(path, func(c *Config) { changes <- c }, nil)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("[web]\nrate_limit = 42.0\n"), 0600))

	select {
	case cfg := <-changes:
		assert.Equal(t, 42.0, cfg.Web.RateLimit)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}
	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}

func TestWatch_ReportsInvalidReload(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "aleopantest.toml")
	require.NoError(t, os.WriteFile(path, []byte("[web]\nport = 9000\n"), 0600))

	errs := make(chan error, 4)
	w, err := Watch(path, func(*Config) {}, func(err error) { errs <- err })
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("[web]\nport = 0\nrate_limit = -3.0\n"), 0600))
	select {
	case err := <-errs:
		assert.Contains(t, err.Error(), "web.rate_limit")
	case <-time.After(5 * time.Second):
		t.Fatal("no error observed")
	}
}

// =============================================================================
// GLOBAL SINGLETON
// =============================================================================

func TestConfig_ConcurrentAccess(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	t.Cleanup(ResetGlobalForTesting)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c := Default()
			c.Version = "test"
			SetGlobal(c)
		}()
		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}
	wg.Wait()
}

func TestConfig_SetGlobalOverwrites(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	t.Cleanup(ResetGlobalForTesting)

	_ = Global()
	custom := Default()
	custom.Version = "custom-version"
	SetGlobal(custom)
	assert.Equal(t, "custom-version", Global().Version)
}
