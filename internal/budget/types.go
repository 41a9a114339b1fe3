// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package budget decides how many retrieved documents a chat turn may use.
//
// The allocator spends what is left of the model's context window after the
// system prompt, the transcript, the draft message and the response reserve,
// at a fixed cost per document, and clamps the result to a safe range.
package budget

import (
	"fmt"
	"strings"
)

// =============================================================================
// SIZING MODE
// =============================================================================

// Mode selects how the document count is chosen.
type Mode string

const (
	ModeAuto          Mode = "auto"
	ModeBalanced      Mode = "balanced"
	ModeComprehensive Mode = "comprehensive"
	ModeFocused       Mode = "focused"
	ModeCustom        Mode = "custom"
)

// AllModes lists the modes in presentation order.
var AllModes = []Mode{ModeAuto, ModeBalanced, ModeComprehensive, ModeFocused, ModeCustom}

// String returns the string representation of the mode.
func (m Mode) String() string {
	return string(m)
}

// Description returns a one-line explanation for menus and help text.
func (m Mode) Description() string {
	switch m {
	case ModeAuto:
		return "size to the model's context window"
	case ModeBalanced:
		return fmt.Sprintf("%d documents", BalancedDocuments)
	case ModeComprehensive:
		return fmt.Sprintf("%d documents", ComprehensiveDocuments)
	case ModeFocused:
		return fmt.Sprintf("%d documents", FocusedDocuments)
	case ModeCustom:
		return fmt.Sprintf("user-chosen count (%d-%d)", MinDocuments, MaxDocuments)
	default:
		return ""
	}
}

// IsValid returns true if the mode is one of the known modes.
func (m Mode) IsValid() bool {
	for _, known := range AllModes {
		if m == known {
			return true
		}
	}
	return false
}

// ParseMode converts a string to a Mode. Unknown values become ModeAuto.
func ParseMode(s string) Mode {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if m.IsValid() {
		return m
	}
	return ModeAuto
}

// =============================================================================
// QUERY TYPE
// =============================================================================

// QueryType is the coarse intent of the user's draft.
type QueryType string

const (
	QueryTrendAnalysis    QueryType = "trend_analysis"
	QueryDetailedAnalysis QueryType = "detailed_analysis"
	QueryQuickSummary     QueryType = "quick_summary"
	QueryComprehensive    QueryType = "comprehensive"
)

// String returns the string representation of the query type.
func (q QueryType) String() string {
	return string(q)
}

// DisplayName returns a human-readable label.
func (q QueryType) DisplayName() string {
	switch q {
	case QueryTrendAnalysis:
		return "Trend analysis"
	case QueryDetailedAnalysis:
		return "Detailed analysis"
	case QueryQuickSummary:
		return "Quick summary"
	case QueryComprehensive:
		return "Comprehensive"
	default:
		return string(q)
	}
}

// =============================================================================
// PLAN
// =============================================================================

// Breakdown itemises the token estimate behind a plan.
type Breakdown struct {
	ContextWindow   int `json:"context_window"`
	SystemPrompt    int `json:"system_prompt"`
	Conversation    int `json:"conversation"`
	Message         int `json:"message"`
	ResponseReserve int `json:"response_reserve"`
	PerDocument     int `json:"per_document"`
	Documents       int `json:"documents"`
	ArticlesBudget  int `json:"articles_budget"`
}

// Fixed returns the costs that do not depend on the document count.
func (b Breakdown) Fixed() int {
	return b.SystemPrompt + b.Conversation + b.Message + b.ResponseReserve
}

// Plan is the allocator's decision for one draft. Plans are values; a new
// draft produces a new plan.
type Plan struct {
	Mode            Mode      `json:"mode"`
	QueryType       QueryType `json:"query_type"`
	DocumentCount   int       `json:"document_count"`
	EstimatedTokens int       `json:"estimated_tokens"`
	Breakdown       Breakdown `json:"breakdown"`

	// Reduced is set when the safety re-check lowered DocumentCount.
	Reduced bool `json:"reduced,omitempty"`

	// Overflow is set when even the minimum document count does not fit.
	Overflow bool `json:"overflow,omitempty"`
}

// UsageRatio returns the estimated share of the context window in use.
func (p Plan) UsageRatio() float64 {
	if p.Breakdown.ContextWindow <= 0 {
		return 0
	}
	return float64(p.EstimatedTokens) / float64(p.Breakdown.ContextWindow)
}

// Savings returns the tokens saved relative to the unoptimised baseline of
// BaselineTokensPerDocument per document.
func (p Plan) Savings() int {
	return p.DocumentCount * (BaselineTokensPerDocument - p.Breakdown.PerDocument)
}

// Summary returns a compact one-line description of the plan.
func (p Plan) Summary() string {
	s := fmt.Sprintf("%d docs, ~%d tokens (%.0f%% of %d), %s",
		p.DocumentCount, p.EstimatedTokens, p.UsageRatio()*100,
		p.Breakdown.ContextWindow, p.QueryType.DisplayName())
	if p.Overflow {
		s += ", exceeds context window"
	} else if p.Reduced {
		s += ", reduced to fit"
	}
	return s
}
