// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"
)

// =============================================================================
// SESSION TYPE
// =============================================================================

// Session is a server-side conversation bound to one analysis topic.
// The ID is opaque and assigned by the backend.
type Session struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
	Messages  []Message `json:"messages"`
}

// NewSession creates an empty session value with a backend-assigned id.
func NewSession(id, topic, title string) *Session {
	return &Session{
		ID:    id,
		Topic: topic,
		Title: title,
	}
}

// =============================================================================
// SESSION METHODS
// =============================================================================

// MessageCount returns the number of messages in the transcript.
func (s *Session) MessageCount() int {
	return len(s.Messages)
}

// IsEmpty returns true if the transcript has no messages.
func (s *Session) IsEmpty() bool {
	return len(s.Messages) == 0
}

// LastMessage returns the last message, or false if there is none.
func (s *Session) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// LastAssistantMessage returns the most recent assistant message.
func (s *Session) LastAssistantMessage() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return s.Messages[i], true
		}
	}
	return Message{}, false
}

// MessageByID returns the message with the given id.
func (s *Session) MessageByID(id string) (Message, bool) {
	for _, m := range s.Messages {
		if m.ID == id {
			return m, true
		}
	}
	return Message{}, false
}

// HistoryText returns the visible transcript as one string. Its character
// count feeds the conversation cost of the budget allocator.
func (s *Session) HistoryText() string {
	var b strings.Builder
	for _, m := range s.Messages {
		b.WriteString(m.Content)
	}
	return b.String()
}

// DisplayTitle returns the title, falling back to the first user message.
func (s *Session) DisplayTitle() string {
	if s.Title != "" {
		return s.Title
	}
	for _, m := range s.Messages {
		if m.Role == RoleUser {
			return m.Preview(50)
		}
	}
	return "New Session"
}

// Clone returns a deep copy safe to hand to renderers.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Messages = make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		if len(m.Charts) > 0 {
			m.Charts = append(m.Charts[:0:0], m.Charts...)
		}
		c.Messages[i] = m
	}
	return &c
}
