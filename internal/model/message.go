// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/jeranaias/insightdesk/internal/chart"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// ParseRole maps a backend role string to a Role. Anything that is not the
// user is shown as the assistant.
func ParseRole(s string) Role {
	if strings.EqualFold(strings.TrimSpace(s), string(RoleUser)) {
		return RoleUser
	}
	return RoleAssistant
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is one turn in a session transcript. Messages are values; the only
// one that changes after being appended is the streaming assistant message,
// and only through session.State.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`

	// Charts extracted from the content once the message is final.
	Charts []chart.Chart `json:"charts,omitempty"`

	// Streaming is true while assistant content is still arriving.
	Streaming bool `json:"-"`

	// Failed marks a synthetic message that reports a stream error.
	Failed bool `json:"failed,omitempty"`
}

// NewMessage creates a message with a generated ID.
func NewMessage(role Role, content string, at time.Time) Message {
	return Message{
		ID:        generateID(),
		Role:      role,
		Content:   content,
		Timestamp: at,
	}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string, at time.Time) Message {
	return NewMessage(RoleUser, content, at)
}

// NewAssistantMessage creates an empty assistant message in streaming state.
func NewAssistantMessage(at time.Time) Message {
	m := NewMessage(RoleAssistant, "", at)
	m.Streaming = true
	return m
}

// NewErrorMessage creates the synthetic assistant message that surfaces a
// stream or transport error in the transcript.
func NewErrorMessage(text string, at time.Time) Message {
	m := NewMessage(RoleAssistant, "Error: "+text, at)
	m.Failed = true
	return m
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// DisplayContent returns the content with chart markers removed.
func (m Message) DisplayContent() string {
	return chart.Extract(m.Content).Text
}

// Preview returns a truncated single-line preview of the message content.
func (m Message) Preview(maxLen int) string {
	content := strings.Join(strings.Fields(m.DisplayContent()), " ")
	if maxLen <= 3 || utf8.RuneCountInString(content) <= maxLen {
		return content
	}
	runes := []rune(content)
	return string(runes[:maxLen-3]) + "..."
}

// IsEmpty returns true if the message has no content.
func (m Message) IsEmpty() bool {
	return len(m.Content) == 0
}

// CharCount returns the number of characters (code points) in the content.
func (m Message) CharCount() int {
	return utf8.RuneCountInString(m.Content)
}

// EstimateTokens gives a rough estimate of token count.
// Uses the approximation of ~4 characters per token.
func (m Message) EstimateTokens() int {
	return EstimateTokens(m.Content)
}

// EstimateTokens estimates the token cost of text at ~4 characters per token,
// rounded up.
func EstimateTokens(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// generateID creates a unique message ID.
func generateID() string {
	return "msg_" + uuid.NewString()
}
