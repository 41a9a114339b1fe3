// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"testing"
	"time"
)

// =============================================================================
// MODEL REGISTRY TESTS
// =============================================================================

func TestContextWindow(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"gpt-4o", 128000},
		{"GPT-4o", 128000},
		{"gpt-4", 8192},
		{"gpt-3.5-turbo", 16385},
		{"no-such-model", DefaultContextWindow},
		{"", DefaultContextWindow},
	}

	for _, tc := range tests {
		t.Run(tc.model, func(t *testing.T) {
			if got := ContextWindow(tc.model); got != tc.want {
				t.Errorf("ContextWindow(%q) = %d, want %d", tc.model, got, tc.want)
			}
		})
	}
}

func TestModels_HaveRequiredFields(t *testing.T) {
	for id, m := range Models {
		t.Run(id, func(t *testing.T) {
			if m.ID != id {
				t.Errorf("Model.ID = %q, want registry key %q", m.ID, id)
			}
			if m.Name == "" {
				t.Error("Model.Name should not be empty")
			}
			if m.ContextWindow <= 0 {
				t.Error("Model.ContextWindow should be positive")
			}
		})
	}
}

func TestModelIDs_Sorted(t *testing.T) {
	ids := ModelIDs()
	if len(ids) != len(Models) {
		t.Fatalf("ModelIDs() returned %d ids, want %d", len(ids), len(Models))
	}
	for i := 1; i < len(ids); i++ {
		if ids[i-1] > ids[i] {
			t.Errorf("ModelIDs() not sorted at %d: %q > %q", i, ids[i-1], ids[i])
		}
	}
}

func TestModelInfo_ContextString(t *testing.T) {
	if got := (ModelInfo{ContextWindow: 128000}).ContextString(); got != "128K tokens" {
		t.Errorf("ContextString() = %q", got)
	}
	if got := (ModelInfo{ContextWindow: 2000000}).ContextString(); got != "2.0M tokens" {
		t.Errorf("ContextString() = %q", got)
	}
}

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"héllo", 2}, // five code points, not six bytes
	}
	for _, tc := range tests {
		if got := EstimateTokens(tc.text); got != tc.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}

func TestMessage_Constructors(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	user := NewUserMessage("hi", now)
	if user.Role != RoleUser || user.Content != "hi" || !user.Timestamp.Equal(now) {
		t.Errorf("unexpected user message: %+v", user)
	}
	if !strings.HasPrefix(user.ID, "msg_") {
		t.Errorf("ID = %q, want msg_ prefix", user.ID)
	}

	asst := NewAssistantMessage(now)
	if !asst.Streaming || !asst.IsEmpty() {
		t.Errorf("assistant message should start empty and streaming: %+v", asst)
	}

	errMsg := NewErrorMessage("backend down", now)
	if !errMsg.Failed || errMsg.Role != RoleAssistant || errMsg.Content != "Error: backend down" {
		t.Errorf("unexpected error message: %+v", errMsg)
	}

	if NewUserMessage("a", now).ID == NewUserMessage("a", now).ID {
		t.Error("message IDs should be unique")
	}
}

func TestMessage_DisplayContentStripsCharts(t *testing.T) {
	m := Message{Content: "Trend: CHART_DATA:{\"type\":\"line\"}:END_CHART up"}
	if got := m.DisplayContent(); got != "Trend:  up" {
		t.Errorf("DisplayContent() = %q", got)
	}
	if got := m.Preview(100); got != "Trend: up" {
		t.Errorf("Preview() = %q", got)
	}
}

func TestMessage_Preview(t *testing.T) {
	m := Message{Content: "ünïcödé text that is long"}
	if got := m.Preview(10); got != "ünïcödé..." {
		t.Errorf("Preview(10) = %q", got)
	}
}

func TestParseRole(t *testing.T) {
	if ParseRole("USER") != RoleUser {
		t.Error("USER should parse as user")
	}
	if ParseRole("assistant") != RoleAssistant || ParseRole("bot") != RoleAssistant {
		t.Error("non-user roles should parse as assistant")
	}
}

// =============================================================================
// SESSION TESTS
// =============================================================================

func TestSession_HistoryAndLookup(t *testing.T) {
	s := NewSession("s1", "energy", "")
	s.Messages = append(s.Messages,
		Message{ID: "1", Role: RoleUser, Content: "What changed?"},
		Message{ID: "2", Role: RoleAssistant, Content: "Prices fell."},
	)

	if got := s.HistoryText(); got != "What changed?Prices fell." {
		t.Errorf("HistoryText() = %q", got)
	}
	if got := s.DisplayTitle(); got != "What changed?" {
		t.Errorf("DisplayTitle() = %q", got)
	}
	if m, ok := s.LastAssistantMessage(); !ok || m.ID != "2" {
		t.Errorf("LastAssistantMessage() = %+v, %v", m, ok)
	}
	if _, ok := s.MessageByID("missing"); ok {
		t.Error("MessageByID should miss unknown ids")
	}
}

func TestSession_CloneIsIndependent(t *testing.T) {
	s := NewSession("s1", "t", "Title")
	s.Messages = []Message{{ID: "1", Content: "a"}}

	c := s.Clone()
	c.Messages[0].Content = "changed"
	c.Messages = append(c.Messages, Message{ID: "2"})

	if s.Messages[0].Content != "a" || len(s.Messages) != 1 {
		t.Error("Clone should not share message storage")
	}
	var nilSession *Session
	if nilSession.Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}
