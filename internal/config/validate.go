// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jeranaias/insightdesk/internal/backend"
	"github.com/jeranaias/insightdesk/internal/budget"
	"github.com/jeranaias/insightdesk/internal/logging"
)

// MaxTimeoutSecs bounds server.timeout_secs.
const MaxTimeoutSecs = 600

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Fields returns the names of the invalid fields.
func (e ValidateErrors) Fields() []string {
	fields := make([]string, len(e))
	for i, err := range e {
		fields[i] = err.Field
	}
	return fields
}

// Validate validates the configuration. It returns ValidateErrors listing
// every problem, or nil.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Server
	if u, err := url.Parse(c.Server.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("server.base_url", "invalid URL '%s', must be http(s)://host[:port]", c.Server.BaseURL)
	}
	if c.Server.TimeoutSecs < 1 || c.Server.TimeoutSecs > MaxTimeoutSecs {
		add("server.timeout_secs", "must be between 1 and %d, got %d", MaxTimeoutSecs, c.Server.TimeoutSecs)
	}
	if c.Server.RateLimit < 0 {
		add("server.rate_limit", "must not be negative, got %g", c.Server.RateLimit)
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		add("server.rate_burst", "must be at least 1 when rate_limit is set, got %d", c.Server.RateBurst)
	}

	// Chat
	if strings.TrimSpace(c.Chat.DefaultModel) == "" {
		add("chat.default_model", "must not be empty")
	}
	if !budget.Mode(c.Chat.SizingMode).IsValid() {
		add("chat.sizing_mode", "invalid mode '%s', must be one of: %s", c.Chat.SizingMode, modeList())
	}
	if c.Chat.CustomLimit < 0 || c.Chat.CustomLimit > budget.MaxDocuments {
		add("chat.custom_limit", "must be between 0 and %d, got %d", budget.MaxDocuments, c.Chat.CustomLimit)
	}
	for _, name := range c.Chat.Capabilities {
		if _, err := backend.ParseCapability(name); err != nil {
			add("chat.capabilities", "%v", err)
		}
	}

	// Logging
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		add("logging.level", "%v", err)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", logging.FormatConsole, logging.FormatJSON:
	default:
		add("logging.format", "invalid format '%s', must be one of: console, json", c.Logging.Format)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func modeList() string {
	names := make([]string, len(budget.AllModes))
	for i, m := range budget.AllModes {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}
