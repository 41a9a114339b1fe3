// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package budget

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ============================================================================
// CLASSIFICATION FUNCTIONS
// ============================================================================

var (
	trendKeywords    = []string{"trend", "pattern", "over time", "recent", "latest"}
	detailedKeywords = []string{"comprehensive", "detailed", "deep", "thorough"}
	summaryKeywords  = []string{"summary", "brief", "overview", "quick"}
)

// ClassifyQuery categorizes a draft by keyword matching.
//
// Classification rules (in order of priority):
//  1. Trend analysis: "trend", "pattern", "over time", "recent", "latest"
//  2. Detailed analysis: "comprehensive", "detailed", "deep", "thorough"
//  3. Quick summary: "summary", "brief", "overview", "quick"
//  4. Comprehensive: default fallback
//
// Matching is case-insensitive and runs on the NFKC form of the draft, so
// full-width or ligature spellings match too.
func ClassifyQuery(draft string) QueryType {
	q := strings.ToLower(norm.NFKC.String(draft))

	switch {
	case containsAny(q, trendKeywords):
		return QueryTrendAnalysis
	case containsAny(q, detailedKeywords):
		return QueryDetailedAnalysis
	case containsAny(q, summaryKeywords):
		return QueryQuickSummary
	default:
		return QueryComprehensive
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
