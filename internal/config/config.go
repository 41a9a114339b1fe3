// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/insightdesk/internal/backend"
	"github.com/jeranaias/insightdesk/internal/budget"
	"github.com/jeranaias/insightdesk/internal/util"
)

// HomeEnv overrides the configuration directory.
const HomeEnv = "INSIGHTDESK_HOME"

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete insightdesk configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	Server   ServerConfig   `toml:"server" json:"server"`
	Chat     ChatConfig     `toml:"chat" json:"chat"`
	Research ResearchConfig `toml:"research" json:"research"`
	Storage  StorageConfig  `toml:"storage" json:"storage"`
	Logging  LoggingConfig  `toml:"logging" json:"logging"`
}

// ServerConfig describes the insights backend.
type ServerConfig struct {
	// BaseURL is the backend root, e.g. http://localhost:8000
	BaseURL string `toml:"base_url" json:"base_url"`
	// TimeoutSecs bounds REST calls. Streams are bounded by cancellation only.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
	// RateLimit is the REST request rate per second (0 = unlimited)
	RateLimit float64 `toml:"rate_limit" json:"rate_limit"`
	RateBurst int     `toml:"rate_burst" json:"rate_burst"`
	// OrgProfileID is sent when creating sessions, if set
	OrgProfileID string `toml:"org_profile_id" json:"org_profile_id"`
}

// ChatConfig holds chat defaults. Preferences saved by the client win over
// these once they exist.
type ChatConfig struct {
	DefaultModel string `toml:"default_model" json:"default_model"`
	DefaultTopic string `toml:"default_topic" json:"default_topic"`
	// SizingMode is auto, balanced, comprehensive, focused or custom
	SizingMode string `toml:"sizing_mode" json:"sizing_mode"`
	// CustomLimit is the document count for custom mode
	CustomLimit int `toml:"custom_limit" json:"custom_limit"`
	// Capabilities are the tools requested with each turn
	Capabilities []string `toml:"capabilities" json:"capabilities"`
}

// ResearchConfig controls deep research.
type ResearchConfig struct {
	Enabled bool `toml:"enabled" json:"enabled"`
}

// StorageConfig locates client-side state.
type StorageConfig struct {
	// PrefsPath is the preferences database (empty = ~/.insightdesk/prefs.db)
	PrefsPath string `toml:"prefs_path" json:"prefs_path"`
}

// LoggingConfig configures diagnostics.
type LoggingConfig struct {
	Level  string `toml:"level" json:"level"`
	File   string `toml:"file" json:"file"`
	Format string `toml:"format" json:"format"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: "1",
		Server: ServerConfig{
			BaseURL:     backend.DefaultBaseURL,
			TimeoutSecs: int(backend.DefaultTimeout / time.Second),
			RateLimit:   backend.DefaultRateLimit,
			RateBurst:   backend.DefaultRateBurst,
		},
		Chat: ChatConfig{
			DefaultModel: "gpt-4o",
			SizingMode:   string(budget.ModeAuto),
			CustomLimit:  budget.DefaultCustomDocuments,
			Capabilities: backend.DefaultCapabilities.Names(),
		},
		Research: ResearchConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}

// SetDefaults fills zero values with built-in defaults.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = d.Server.BaseURL
	}
	c.Server.BaseURL = strings.TrimRight(c.Server.BaseURL, "/")
	if c.Server.TimeoutSecs == 0 {
		c.Server.TimeoutSecs = d.Server.TimeoutSecs
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst == 0 {
		c.Server.RateBurst = d.Server.RateBurst
	}
	if c.Chat.DefaultModel == "" {
		c.Chat.DefaultModel = d.Chat.DefaultModel
	}
	if c.Chat.SizingMode == "" {
		c.Chat.SizingMode = d.Chat.SizingMode
	}
	c.Chat.SizingMode = strings.ToLower(c.Chat.SizingMode)
	if c.Chat.Capabilities == nil {
		c.Chat.Capabilities = d.Chat.Capabilities
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
}

// Timeout returns the REST timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Server.TimeoutSecs) * time.Second
}

// Capabilities returns the configured tool set. Validate reports unknown
// names; here they are skipped.
func (c *Config) Capabilities() backend.Capabilities {
	var caps backend.Capabilities
	for _, name := range c.Chat.Capabilities {
		if capability, err := backend.ParseCapability(name); err == nil {
			caps = caps.With(capability)
		}
	}
	return caps
}

// Sizing returns the configured sizing mode.
func (c *Config) Sizing() budget.Mode {
	return budget.ParseMode(c.Chat.SizingMode)
}

// PrefsPath returns the preferences database path.
func (c *Config) PrefsPath() string {
	if c.Storage.PrefsPath != "" {
		return c.Storage.PrefsPath
	}
	dir, err := ConfigDir()
	if err != nil {
		return filepath.Join(".insightdesk", "prefs.db")
	}
	return filepath.Join(dir, "prefs.db")
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the configuration directory: $INSIGHTDESK_HOME or
// ~/.insightdesk.
func ConfigDir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".insightdesk"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config directory.
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	tomlPath, err := ConfigPathTOML()
	if err != nil {
		return finish(Default())
	}
	if _, statErr := os.Stat(tomlPath); statErr == nil {
		return LoadFromPath(tomlPath)
	}

	jsonPath, err := ConfigPathJSON()
	if err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			return LoadFromPath(jsonPath)
		}
	}

	return finish(Default())
}

// LoadFromPath loads configuration from a specific file. Files ending in
// .json are decoded as JSON, anything else as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(strings.ToLower(path), ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration as TOML with owner-only permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# insightdesk configuration file")
	fmt.Fprintln(&buf, "# Generated by insightdesk - edit with care")
	fmt.Fprintln(&buf, "")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.WritePrivateFile(path, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes the configuration as indented JSON.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.WritePrivateFile(path, data); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Chat.Capabilities = slices.Clone(c.Chat.Capabilities)
	return &clone
}

// String renders the configuration as TOML.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return err.Error()
	}
	return buf.String()
}
