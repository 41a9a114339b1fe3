// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package budget

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// CLASSIFICATION TESTS
// =============================================================================

func TestClassifyQuery(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected QueryType
	}{
		{"trend keyword", "Show the trend in oil prices", QueryTrendAnalysis},
		{"over time phrase", "How did rates move over time?", QueryTrendAnalysis},
		{"latest", "LATEST filings please", QueryTrendAnalysis},
		{"detailed", "Give me a detailed breakdown", QueryDetailedAnalysis},
		{"thorough", "a thorough review of risks", QueryDetailedAnalysis},
		{"summary", "give me a quick summary", QueryQuickSummary},
		{"overview", "Overview of the sector", QueryQuickSummary},
		{"default", "What happened to the merger?", QueryComprehensive},
		{"empty", "", QueryComprehensive},
		// Precedence: trend beats detailed beats summary.
		{"trend beats summary", "quick summary of recent news", QueryTrendAnalysis},
		{"detailed beats summary", "detailed summary", QueryDetailedAnalysis},
		{"trend beats detailed", "deep dive into the pattern", QueryTrendAnalysis},
		{"full-width letters", "ｔｒｅｎｄ", QueryTrendAnalysis},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyQuery(tt.query))
		})
	}
}

// =============================================================================
// ALLOCATION TESTS
// =============================================================================

func TestAllocate_FixedModes(t *testing.T) {
	drafts := []string{"", "quick summary", strings.Repeat("detailed ", 5000)}
	tests := []struct {
		mode Mode
		want int
	}{
		{ModeBalanced, 50},
		{ModeComprehensive, 100},
		{ModeFocused, 25},
	}

	for _, tt := range tests {
		for _, draft := range drafts {
			plan := Allocate(Input{Model: "gpt-4", Mode: tt.mode, Draft: draft, History: draft})
			assert.Equal(t, tt.want, plan.DocumentCount, "mode %s", tt.mode)
		}
	}
}

func TestAllocate_CustomDefaults(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"absent", 0, 50},
		{"invalid", -7, 50},
		{"in range", 120, 120},
		{"below floor", 3, MinDocuments},
		{"above ceiling", 5000, MaxDocuments},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := Allocate(Input{Model: "gpt-4o", Mode: ModeCustom, CustomLimit: tt.limit})
			assert.Equal(t, tt.want, plan.DocumentCount)
		})
	}
}

func TestAllocate_AlwaysInRange(t *testing.T) {
	models := []string{"gpt-4o", "gpt-4", "unknown", "claude-3-5-sonnet"}
	texts := []string{"", "hi", strings.Repeat("x", 9000), strings.Repeat("y", 70000)}
	limits := []int{-1, 0, 1, 10, 299, 300, 301, 100000}

	for _, m := range models {
		for _, mode := range AllModes {
			for _, draft := range texts {
				for _, history := range texts {
					for _, limit := range limits {
						plan := Allocate(Input{Model: m, Mode: mode, CustomLimit: limit, Draft: draft, History: history})
						require.GreaterOrEqual(t, plan.DocumentCount, MinDocuments)
						require.LessOrEqual(t, plan.DocumentCount, MaxDocuments)
					}
				}
			}
		}
	}
}

func TestAllocate_AutoQuickSummaryOnLargeWindow(t *testing.T) {
	plan := Allocate(Input{Model: "gpt-4o", Mode: ModeAuto, Draft: "give me a quick summary"})

	assert.Equal(t, QueryQuickSummary, plan.QueryType)
	assert.Equal(t, 128000, plan.Breakdown.ContextWindow)
	assert.Equal(t, 15360, plan.Breakdown.SystemPrompt)
	assert.Equal(t, 6400, plan.Breakdown.ResponseReserve)
	assert.Equal(t, 6, plan.Breakdown.Message) // 23 chars, rounded up
	assert.Equal(t, 0, plan.Breakdown.Conversation)
	assert.Equal(t, 93440, plan.Breakdown.ArticlesBudget)
	assert.Equal(t, MaxDocuments, plan.DocumentCount)
	assert.Equal(t, 15360+6400+6+300*120, plan.EstimatedTokens)
	assert.Equal(t, 300*180, plan.Savings())
}

func TestAllocate_AutoSmallWindowUsesFloor(t *testing.T) {
	// A transcript that eats the whole window drives the articles budget
	// negative; auto still targets the 50 document floor.
	plan := Allocate(Input{Model: "gpt-4", Mode: ModeAuto, History: strings.Repeat("h", 40000)})
	assert.Less(t, plan.Breakdown.ArticlesBudget, 0)
	assert.Equal(t, MinAutoDocuments, plan.DocumentCount)
}

func TestAllocate_UnknownModeIsAuto(t *testing.T) {
	plan := Allocate(Input{Model: "gpt-4o", Mode: Mode("bogus")})
	assert.Equal(t, ModeAuto, plan.Mode)
}

func TestAllocate_Deterministic(t *testing.T) {
	in := Input{Model: "gpt-4o", Mode: ModeAuto, Draft: "recent trend", History: "earlier turns"}
	assert.Equal(t, Allocate(in), Allocate(in))
}

// =============================================================================
// SAFETY RECHECK TESTS
// =============================================================================

func TestRecheck_OverflowSafety(t *testing.T) {
	// 8192-token model with a custom limit of 300: 300*120 tokens cannot fit.
	plan := Allocate(Input{Model: "gpt-4", Mode: ModeCustom, CustomLimit: 300})
	require.Equal(t, 300, plan.DocumentCount)
	require.Greater(t, plan.UsageRatio(), 0.95)

	checked := Recheck(plan)
	assert.Less(t, checked.DocumentCount, 300)
	assert.Equal(t, 49, checked.DocumentCount)
	assert.True(t, checked.Reduced)
	assert.False(t, checked.Overflow)
	assert.LessOrEqual(t, checked.EstimatedTokens, 8192*95/100)
}

func TestRecheck_NoChangeWhenFits(t *testing.T) {
	plan := Allocate(Input{Model: "gpt-4o", Mode: ModeAuto, Draft: "hello"})
	assert.Equal(t, plan, Recheck(plan))
}

func TestRecheck_Overflow(t *testing.T) {
	// The transcript alone exceeds the window.
	plan := Allocate(Input{Model: "gpt-4", Mode: ModeCustom, CustomLimit: 20, History: strings.Repeat("h", 40000)})
	checked := Recheck(plan)

	assert.Equal(t, MinRecheckDocuments, checked.DocumentCount)
	assert.True(t, checked.Reduced)
	assert.True(t, checked.Overflow)
}

func TestRecheck_FloorAtFive(t *testing.T) {
	// Fixed costs leave under 5 documents of room at the 90% target.
	plan := Allocate(Input{Model: "gpt-4", Mode: ModeCustom, CustomLimit: 300, History: strings.Repeat("h", 22000)})
	checked := Recheck(plan)

	assert.Equal(t, MinRecheckDocuments, checked.DocumentCount)
	assert.True(t, checked.Reduced)
}

func TestNeedsRecheck(t *testing.T) {
	assert.True(t, NeedsRecheck(ModeAuto))
	assert.True(t, NeedsRecheck(ModeCustom))
	assert.False(t, NeedsRecheck(ModeBalanced))
	assert.False(t, NeedsRecheck(ModeFocused))
}

// =============================================================================
// PLANNER TESTS
// =============================================================================

func TestPlanner_MemoisesAndRechecks(t *testing.T) {
	p := NewPlanner(0)
	in := Input{Model: "gpt-4", Mode: ModeCustom, CustomLimit: 300}

	first := p.Plan(in)
	second := p.Plan(in)
	assert.Equal(t, first, second)
	assert.Equal(t, 49, first.DocumentCount)

	hits, misses := p.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)

	p.Flush()
	p.Plan(in)
	_, misses = p.Stats()
	assert.Equal(t, int64(2), misses)
}

func TestPlanner_FixedModeNotRechecked(t *testing.T) {
	p := NewPlanner(0)
	plan := p.Plan(Input{Model: "gpt-4", Mode: ModeComprehensive, History: strings.Repeat("h", 40000)})
	assert.Equal(t, ComprehensiveDocuments, plan.DocumentCount)
	assert.False(t, plan.Reduced)
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeFocused, ParseMode(" Focused "))
	assert.Equal(t, ModeAuto, ParseMode("nonsense"))
	assert.Equal(t, ModeAuto, ParseMode(""))
}

func TestPlan_Summary(t *testing.T) {
	plan := Recheck(Allocate(Input{Model: "gpt-4", Mode: ModeCustom, CustomLimit: 300}))
	assert.Contains(t, plan.Summary(), "49 docs")
	assert.Contains(t, plan.Summary(), "reduced to fit")
}
