// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultContextWindow is used for models missing from the registry.
const DefaultContextWindow = 16385

// =============================================================================
// MODEL INFO TYPE
// =============================================================================

// ModelInfo describes a backend model the assistant can route a turn to.
type ModelInfo struct {
	// ID is the model identifier sent to the backend
	ID string `json:"id"`

	// Name is the human-readable display name
	Name string `json:"name"`

	// Provider identifies who serves the model
	Provider string `json:"provider"`

	// ContextWindow is the maximum number of tokens per request
	ContextWindow int `json:"context_window"`

	// Description is a brief explanation of the model's strengths
	Description string `json:"description"`
}

// =============================================================================
// MODEL REGISTRY
// =============================================================================

// Models is the registry of models the backend accepts, keyed by ID.
var Models = map[string]ModelInfo{
	"gpt-4o": {
		ID:            "gpt-4o",
		Name:          "GPT-4o",
		Provider:      "OpenAI",
		ContextWindow: 128000,
		Description:   "Fast multimodal model, default for analysis",
	},
	"gpt-4o-mini": {
		ID:            "gpt-4o-mini",
		Name:          "GPT-4o Mini",
		Provider:      "OpenAI",
		ContextWindow: 128000,
		Description:   "Cost-effective for quick summaries",
	},
	"gpt-4-turbo": {
		ID:            "gpt-4-turbo",
		Name:          "GPT-4 Turbo",
		Provider:      "OpenAI",
		ContextWindow: 128000,
		Description:   "Long context reasoning",
	},
	"gpt-4": {
		ID:            "gpt-4",
		Name:          "GPT-4",
		Provider:      "OpenAI",
		ContextWindow: 8192,
		Description:   "Original GPT-4 with a small window",
	},
	"gpt-3.5-turbo": {
		ID:            "gpt-3.5-turbo",
		Name:          "GPT-3.5 Turbo",
		Provider:      "OpenAI",
		ContextWindow: 16385,
		Description:   "Legacy fast model",
	},
	"claude-3-5-sonnet": {
		ID:            "claude-3-5-sonnet",
		Name:          "Claude 3.5 Sonnet",
		Provider:      "Anthropic",
		ContextWindow: 200000,
		Description:   "Best balance of speed and capability",
	},
	"claude-3-haiku": {
		ID:            "claude-3-haiku",
		Name:          "Claude 3 Haiku",
		Provider:      "Anthropic",
		ContextWindow: 200000,
		Description:   "Fast and efficient for simple tasks",
	},
}

// ContextString returns a formatted context window string.
func (m ModelInfo) ContextString() string {
	if m.ContextWindow >= 1000000 {
		return fmt.Sprintf("%.1fM tokens", float64(m.ContextWindow)/1000000)
	}
	if m.ContextWindow >= 1000 {
		return fmt.Sprintf("%dK tokens", m.ContextWindow/1000)
	}
	return fmt.Sprintf("%d tokens", m.ContextWindow)
}

// =============================================================================
// MODEL LOOKUP FUNCTIONS
// =============================================================================

// GetModelInfo looks up a model by ID, case-insensitively.
func GetModelInfo(id string) (ModelInfo, bool) {
	if info, ok := Models[id]; ok {
		return info, true
	}
	lower := strings.ToLower(strings.TrimSpace(id))
	if info, ok := Models[lower]; ok {
		return info, true
	}
	return ModelInfo{}, false
}

// ContextWindow returns the context window of the named model, or
// DefaultContextWindow when the model is unknown.
func ContextWindow(id string) int {
	if info, ok := GetModelInfo(id); ok && info.ContextWindow > 0 {
		return info.ContextWindow
	}
	return DefaultContextWindow
}

// ModelIDs returns the registered model IDs in sorted order.
func ModelIDs() []string {
	ids := make([]string, 0, len(Models))
	for id := range Models {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
