// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables read by ApplyEnvOverrides.
const (
	EnvBaseURL      = "INSIGHTDESK_BASE_URL"
	EnvTimeout      = "INSIGHTDESK_TIMEOUT_SECS"
	EnvOrgProfile   = "INSIGHTDESK_ORG_PROFILE_ID"
	EnvModel        = "INSIGHTDESK_MODEL"
	EnvTopic        = "INSIGHTDESK_TOPIC"
	EnvSizingMode   = "INSIGHTDESK_SIZING_MODE"
	EnvCustomLimit  = "INSIGHTDESK_CUSTOM_LIMIT"
	EnvCapabilities = "INSIGHTDESK_CAPABILITIES"
	EnvResearch     = "INSIGHTDESK_RESEARCH"
	EnvPrefsPath    = "INSIGHTDESK_PREFS_PATH"
	EnvLogLevel     = "INSIGHTDESK_LOG_LEVEL"
	EnvLogFile      = "INSIGHTDESK_LOG_FILE"
)

// LoadDotEnv loads KEY=VALUE pairs from the given files (default ".env")
// into the process environment. Variables already set are kept. Missing
// files are not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - INSIGHTDESK_BASE_URL: overrides server.base_url
//   - INSIGHTDESK_TIMEOUT_SECS: overrides server.timeout_secs
//   - INSIGHTDESK_ORG_PROFILE_ID: overrides server.org_profile_id
//   - INSIGHTDESK_MODEL: overrides chat.default_model
//   - INSIGHTDESK_TOPIC: overrides chat.default_topic
//   - INSIGHTDESK_SIZING_MODE: overrides chat.sizing_mode
//   - INSIGHTDESK_CUSTOM_LIMIT: overrides chat.custom_limit
//   - INSIGHTDESK_CAPABILITIES: comma-separated chat.capabilities
//   - INSIGHTDESK_RESEARCH: "1" or "true" enables research
//   - INSIGHTDESK_PREFS_PATH: overrides storage.prefs_path
//   - INSIGHTDESK_LOG_LEVEL, INSIGHTDESK_LOG_FILE: logging overrides
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv(EnvBaseURL); v != "" {
		c.Server.BaseURL = v
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.TimeoutSecs = n
		}
	}
	if v := os.Getenv(EnvOrgProfile); v != "" {
		c.Server.OrgProfileID = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		c.Chat.DefaultModel = v
	}
	if v := os.Getenv(EnvTopic); v != "" {
		c.Chat.DefaultTopic = v
	}
	if v := os.Getenv(EnvSizingMode); v != "" {
		c.Chat.SizingMode = v
	}
	if v := os.Getenv(EnvCustomLimit); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Chat.CustomLimit = n
		}
	}
	if v, ok := os.LookupEnv(EnvCapabilities); ok {
		c.Chat.Capabilities = splitList(v)
	}
	if v := os.Getenv(EnvResearch); v != "" {
		c.Research.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv(EnvPrefsPath); v != "" {
		c.Storage.PrefsPath = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFile); v != "" {
		c.Logging.File = v
	}
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
