// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package budget

import (
	"github.com/jeranaias/insightdesk/internal/model"
)

// =============================================================================
// ALLOCATOR CONSTANTS
// =============================================================================

const (
	// MinDocuments and MaxDocuments bound every allocated document count.
	MinDocuments = 10
	MaxDocuments = 300

	// Fixed mode sizes.
	BalancedDocuments      = 50
	ComprehensiveDocuments = 100
	FocusedDocuments       = 25

	// DefaultCustomDocuments is used when a custom limit is absent or invalid.
	DefaultCustomDocuments = 50

	// MinAutoDocuments is the floor auto mode targets before clamping.
	MinAutoDocuments = 50

	// TokensPerDocument is the optimised per-article cost.
	TokensPerDocument = 120

	// BaselineTokensPerDocument is the unoptimised cost savings are shown against.
	BaselineTokensPerDocument = 300

	// MinRecheckDocuments is the floor of the safety re-check.
	MinRecheckDocuments = 5

	// Shares of the context window, in percent.
	systemPromptPercent    = 12
	responseReservePercent = 5
	articlesCapPercent     = 73
	safetyTriggerPercent   = 95
	safetyTargetPercent    = 90

	charsPerToken = 4
)

// Input is everything the allocator looks at.
type Input struct {
	Model string
	Mode  Mode

	// CustomLimit is the user's document count for ModeCustom. Zero or a
	// negative value means "not set".
	CustomLimit int

	// Draft is the message being composed.
	Draft string

	// History is the visible transcript text of the active session.
	History string
}

// =============================================================================
// ALLOCATION
// =============================================================================

// Allocate computes the document budget for a draft. It is a pure function:
// equal inputs always produce equal plans. DocumentCount is always within
// [MinDocuments, MaxDocuments].
func Allocate(in Input) Plan {
	mode := in.Mode
	if !mode.IsValid() {
		mode = ModeAuto
	}

	bd := breakdown(in.Model, in.Draft, in.History)
	plan := Plan{
		Mode:      mode,
		QueryType: ClassifyQuery(in.Draft),
	}

	switch mode {
	case ModeBalanced:
		plan.DocumentCount = BalancedDocuments
	case ModeComprehensive:
		plan.DocumentCount = ComprehensiveDocuments
	case ModeFocused:
		plan.DocumentCount = FocusedDocuments
	case ModeCustom:
		limit := in.CustomLimit
		if limit < 1 {
			limit = DefaultCustomDocuments
		}
		plan.DocumentCount = clamp(limit, MinDocuments, MaxDocuments)
	default:
		roughMax := floorDiv(bd.ArticlesBudget, TokensPerDocument)
		plan.DocumentCount = clamp(max(roughMax, MinAutoDocuments), MinDocuments, MaxDocuments)
	}

	plan.Breakdown = withDocuments(bd, plan.DocumentCount)
	plan.EstimatedTokens = plan.Breakdown.Fixed() + plan.Breakdown.Documents
	return plan
}

// Recheck lowers the document count of a plan whose estimate exceeds 95% of
// the context window. The reduced count targets 90% of the window with a
// floor of MinRecheckDocuments, and is only accepted if it is smaller than
// the original. Overflow is set when even the reduced plan does not fit.
//
// The floor may take DocumentCount below MinDocuments; the re-check trades
// the range for fitting the window.
func Recheck(p Plan) Plan {
	window := p.Breakdown.ContextWindow
	if window <= 0 || p.EstimatedTokens <= percentOf(window, safetyTriggerPercent) {
		return p
	}

	target := percentOf(window, safetyTargetPercent) - p.Breakdown.Fixed()
	reduced := max(floorDiv(target, TokensPerDocument), MinRecheckDocuments)
	if reduced < p.DocumentCount {
		p.DocumentCount = reduced
		p.Reduced = true
		p.Breakdown = withDocuments(p.Breakdown, reduced)
		p.EstimatedTokens = p.Breakdown.Fixed() + p.Breakdown.Documents
	}

	p.Overflow = p.EstimatedTokens > percentOf(window, safetyTriggerPercent)
	return p
}

// NeedsRecheck reports whether the caller applies Recheck for a mode.
// Fixed modes keep their advertised sizes.
func NeedsRecheck(m Mode) bool {
	return m == ModeAuto || m == ModeCustom
}

// =============================================================================
// HELPERS
// =============================================================================

func breakdown(modelID, draft, history string) Breakdown {
	window := model.ContextWindow(modelID)
	bd := Breakdown{
		ContextWindow:   window,
		SystemPrompt:    percentOf(window, systemPromptPercent),
		Conversation:    model.EstimateTokens(history),
		Message:         model.EstimateTokens(draft),
		ResponseReserve: percentOf(window, responseReservePercent),
		PerDocument:     TokensPerDocument,
	}
	bd.ArticlesBudget = min(percentOf(window, articlesCapPercent), window-bd.Fixed())
	return bd
}

func withDocuments(bd Breakdown, n int) Breakdown {
	bd.Documents = n * bd.PerDocument
	return bd
}

// percentOf returns floor(n * pct / 100) for non-negative n.
func percentOf(n, pct int) int {
	return n * pct / 100
}

// floorDiv divides rounding toward negative infinity.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
