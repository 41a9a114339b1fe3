// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/insightdesk/internal/backend"
	"github.com/jeranaias/insightdesk/internal/budget"
)

// isolate points the config directory at a temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(HomeEnv, dir)
	for _, key := range []string{
		EnvBaseURL, EnvTimeout, EnvOrgProfile, EnvModel, EnvTopic,
		EnvSizingMode, EnvCustomLimit, EnvResearch, EnvPrefsPath,
		EnvLogLevel, EnvLogFile,
	} {
		t.Setenv(key, "")
	}
	// LookupEnv distinguishes unset from empty for capabilities.
	t.Setenv(EnvCapabilities, "")
	os.Unsetenv(EnvCapabilities)
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, backend.DefaultBaseURL, cfg.Server.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Timeout())
	assert.Equal(t, budget.ModeAuto, cfg.Sizing())
	assert.Equal(t, backend.DefaultCapabilities, cfg.Capabilities())
	assert.True(t, cfg.Research.Enabled)
}

func TestLoad_NoFilesUsesDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Server, cfg.Server)
	assert.Equal(t, "gpt-4o", cfg.Chat.DefaultModel)
}

func TestLoad_TOML(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "config.toml"), `
[server]
base_url = "https://insights.example.com/"
timeout_secs = 10

[chat]
default_model = "gpt-4"
default_topic = "energy"
sizing_mode = "Custom"
custom_limit = 120
capabilities = ["web_search", "charts"]

[research]
enabled = false
`)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://insights.example.com", cfg.Server.BaseURL, "trailing slash trimmed")
	assert.Equal(t, 10*time.Second, cfg.Timeout())
	assert.Equal(t, "gpt-4", cfg.Chat.DefaultModel)
	assert.Equal(t, "energy", cfg.Chat.DefaultTopic)
	assert.Equal(t, budget.ModeCustom, cfg.Sizing())
	assert.Equal(t, 120, cfg.Chat.CustomLimit)
	assert.Equal(t, backend.NewCapabilities(backend.CapWebSearch, backend.CapCharts), cfg.Capabilities())
	assert.False(t, cfg.Research.Enabled)
	// Untouched sections keep defaults.
	assert.Equal(t, backend.DefaultRateBurst, cfg.Server.RateBurst)
}

func TestLoad_JSONFallback(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "config.json"), `{"chat":{"default_model":"claude-3-haiku"}}`)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "claude-3-haiku", cfg.Chat.DefaultModel)
}

func TestLoad_TOMLWinsOverJSON(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "config.toml"), "[chat]\ndefault_model = \"gpt-4\"\n")
	writeFile(t, filepath.Join(dir, "config.json"), `{"chat":{"default_model":"claude-3-haiku"}}`)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "gpt-4", cfg.Chat.DefaultModel)
}

func TestLoadFromPath_Errors(t *testing.T) {
	dir := isolate(t)

	bad := filepath.Join(dir, "bad.toml")
	writeFile(t, bad, "[chat\n")
	_, err := LoadFromPath(bad)
	assert.Error(t, err)

	unknown := filepath.Join(dir, "unknown.toml")
	writeFile(t, unknown, "[chat]\nflavour = \"vanilla\"\n")
	_, err = LoadFromPath(unknown)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat.flavour")

	_, err = LoadFromPath(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestApplyEnvOverrides(t *testing.T) {
	isolate(t)
	require.NoError(t, os.Setenv(EnvCapabilities, "news_feed, web_search"))
	t.Cleanup(func() { os.Unsetenv(EnvCapabilities) })
	t.Setenv(EnvBaseURL, "http://backend:9000")
	t.Setenv(EnvModel, "gpt-4-turbo")
	t.Setenv(EnvSizingMode, "focused")
	t.Setenv(EnvCustomLimit, "75")
	t.Setenv(EnvResearch, "false")
	t.Setenv(EnvTimeout, "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://backend:9000", cfg.Server.BaseURL)
	assert.Equal(t, "gpt-4-turbo", cfg.Chat.DefaultModel)
	assert.Equal(t, budget.ModeFocused, cfg.Sizing())
	assert.Equal(t, 75, cfg.Chat.CustomLimit)
	assert.False(t, cfg.Research.Enabled)
	assert.Equal(t, 30, cfg.Server.TimeoutSecs, "unparseable override is ignored")
	assert.Equal(t, []string{"news_feed", "web_search"}, cfg.Chat.Capabilities)
}

func TestLoadDotEnv(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	writeFile(t, envFile, "INSIGHTDESK_TOPIC=semiconductors\nINSIGHTDESK_MODEL=gpt-4\n")
	t.Setenv(EnvModel, "preset")
	os.Unsetenv(EnvTopic)
	t.Cleanup(func() { os.Unsetenv(EnvTopic) })

	require.NoError(t, LoadDotEnv(envFile, filepath.Join(dir, "absent.env")))
	assert.Equal(t, "semiconductors", os.Getenv(EnvTopic))
	assert.Equal(t, "preset", os.Getenv(EnvModel), "existing variables win")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad url", func(c *Config) { c.Server.BaseURL = "localhost:8000" }, "server.base_url"},
		{"ftp url", func(c *Config) { c.Server.BaseURL = "ftp://host" }, "server.base_url"},
		{"timeout", func(c *Config) { c.Server.TimeoutSecs = 0 }, "server.timeout_secs"},
		{"negative rate", func(c *Config) { c.Server.RateLimit = -1 }, "server.rate_limit"},
		{"burst", func(c *Config) { c.Server.RateBurst = 0 }, "server.rate_burst"},
		{"model", func(c *Config) { c.Chat.DefaultModel = "" }, "chat.default_model"},
		{"mode", func(c *Config) { c.Chat.SizingMode = "huge" }, "chat.sizing_mode"},
		{"limit", func(c *Config) { c.Chat.CustomLimit = 301 }, "chat.custom_limit"},
		{"capability", func(c *Config) { c.Chat.Capabilities = []string{"teleport"} }, "chat.capabilities"},
		{"level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			var verrs ValidateErrors
			require.True(t, errors.As(err, &verrs), "want ValidateErrors, got %v", err)
			assert.Equal(t, []string{tt.field}, verrs.Fields())
		})
	}
}

func TestValidate_CollectsAll(t *testing.T) {
	cfg := Default()
	cfg.Server.BaseURL = "nope"
	cfg.Chat.SizingMode = "nope"

	err := cfg.Validate()
	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 2)
	assert.Contains(t, err.Error(), "server.base_url")
	assert.Contains(t, err.Error(), "chat.sizing_mode")
}

func TestSaveAndReload(t *testing.T) {
	dir := isolate(t)
	cfg := Default()
	cfg.Chat.DefaultTopic = "energy"
	cfg.Chat.Capabilities = []string{"web_search"}

	require.NoError(t, Save(cfg))
	info, err := os.Stat(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "energy", loaded.Chat.DefaultTopic)
	assert.Equal(t, []string{"web_search"}, loaded.Chat.Capabilities)

	jsonPath := filepath.Join(dir, "other.json")
	require.NoError(t, SaveJSON(cfg, jsonPath))
	fromJSON, err := LoadFromPath(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "energy", fromJSON.Chat.DefaultTopic)
}

func TestGetSet(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set("chat.sizing_mode", "balanced"))
	require.NoError(t, cfg.Set("server.timeout_secs", "45"))
	require.NoError(t, cfg.Set("research.enabled", "false"))
	require.NoError(t, cfg.Set("chat.capabilities", "charts, news_feed"))
	require.NoError(t, cfg.Set("server.rate_limit", 2.5))

	v, err := cfg.Get("chat.sizing_mode")
	require.NoError(t, err)
	assert.Equal(t, "balanced", v)
	assert.Equal(t, 45, cfg.Server.TimeoutSecs)
	assert.False(t, cfg.Research.Enabled)
	assert.Equal(t, []string{"charts", "news_feed"}, cfg.Chat.Capabilities)
	assert.Equal(t, 2.5, cfg.Server.RateLimit)

	_, err = cfg.Get("chat.flavour")
	assert.Error(t, err)
	assert.Error(t, cfg.Set("chat.default_model.x", "y"))
	assert.Error(t, cfg.Set("server.timeout_secs", "soon"))
	assert.Error(t, cfg.Set("", "x"))

	for _, key := range Keys() {
		_, err := cfg.Get(key)
		assert.NoError(t, err, key)
	}
}

func TestClone(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()
	clone.Chat.Capabilities[0] = "mutated"
	assert.NotEqual(t, "mutated", cfg.Chat.Capabilities[0])
	assert.Contains(t, cfg.String(), "[server]")
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "[chat]\ndefault_model = \"gpt-4\"\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	require.NoError(t, Watch(ctx, path, func(cfg *Config, err error) {
		if err == nil {
			changes <- cfg
		}
	}))

	writeFile(t, path, "[chat]\ndefault_model = \"gpt-4o-mini\"\n")

	select {
	case cfg := <-changes:
		assert.Equal(t, "gpt-4o-mini", cfg.Chat.DefaultModel)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after config change")
	}
}

func TestWatch_MissingDirectory(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "nope", "config.toml"), func(*Config, error) {})
	assert.Error(t, err)
}
