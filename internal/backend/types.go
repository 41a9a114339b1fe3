// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/bits"
	"sort"
	"strings"
	"time"

	"github.com/jeranaias/insightdesk/internal/model"
)

// =============================================================================
// TRANSPORT INTERFACE
// =============================================================================

// Transport is everything the session client needs from the backend.
// Client is the HTTP implementation; tests substitute their own.
type Transport interface {
	CreateSession(ctx context.Context, req CreateSessionRequest) (string, error)
	ListSessions(ctx context.Context, topic string) ([]SessionInfo, error)
	FetchMessages(ctx context.Context, sessionID string) ([]MessageRecord, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// StreamChat and StreamResearch return the raw event-stream body.
	// The caller closes it.
	StreamChat(ctx context.Context, req ChatRequest) (io.ReadCloser, error)
	StreamResearch(ctx context.Context, req ResearchRequest) (io.ReadCloser, error)
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreateSessionRequest creates a session bound to a topic.
type CreateSessionRequest struct {
	Topic        string `json:"topic"`
	Title        string `json:"title"`
	OrgProfileID string `json:"org_profile_id,omitempty"`
}

// ChatRequest is one chat turn.
type ChatRequest struct {
	SessionID   string       `json:"session_id"`
	Message     string       `json:"message"`
	Model       string       `json:"model"`
	MaxArticles int          `json:"max_articles"`
	Tools       Capabilities `json:"tools"`
}

// ResearchRequest starts a research job.
type ResearchRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
	Topic     string `json:"topic"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// SessionInfo is one entry of a session listing.
type SessionInfo struct {
	ID           string    `json:"id"`
	Topic        string    `json:"topic"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count,omitempty"`
}

// ToSession converts the listing entry into an empty model.Session.
func (s SessionInfo) ToSession() *model.Session {
	sess := model.NewSession(s.ID, s.Topic, s.Title)
	sess.CreatedAt = s.CreatedAt
	sess.UpdatedAt = s.UpdatedAt
	return sess
}

// LastActive returns the most recent of the two timestamps.
func (s SessionInfo) LastActive() time.Time {
	if s.UpdatedAt.After(s.CreatedAt) {
		return s.UpdatedAt
	}
	return s.CreatedAt
}

// MessageRecord is one stored message as returned by the backend.
type MessageRecord struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ToMessage converts the record into a model.Message.
func (r MessageRecord) ToMessage() model.Message {
	m := model.NewMessage(model.ParseRole(r.Role), r.Content, r.CreatedAt)
	if r.ID != "" {
		m.ID = r.ID
	}
	return m
}

// =============================================================================
// CAPABILITIES
// =============================================================================

// Capability is one optional backend tool a chat turn may use.
type Capability uint8

const (
	CapWebSearch Capability = 1 << iota
	CapCharts
	CapCitations
	CapNewsFeed
)

// AllCapabilities lists every known capability in bit order.
var AllCapabilities = []Capability{CapWebSearch, CapCharts, CapCitations, CapNewsFeed}

var capabilityNames = map[Capability]string{
	CapWebSearch: "web_search",
	CapCharts:    "charts",
	CapCitations: "citations",
	CapNewsFeed:  "news_feed",
}

// String returns the wire name of a single capability.
func (c Capability) String() string {
	if name, ok := capabilityNames[c]; ok {
		return name
	}
	return fmt.Sprintf("capability(%d)", uint8(c))
}

// ParseCapability maps a wire name to a capability.
func ParseCapability(name string) (Capability, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for c, n := range capabilityNames {
		if n == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown capability %q", name)
}

// Capabilities is a set of enabled capabilities.
type Capabilities uint8

// DefaultCapabilities is what a turn enables unless configured otherwise.
const DefaultCapabilities = Capabilities(CapCharts | CapCitations)

// NewCapabilities builds a set.
func NewCapabilities(caps ...Capability) Capabilities {
	var set Capabilities
	for _, c := range caps {
		set |= Capabilities(c)
	}
	return set
}

// ParseCapabilities builds a set from wire names.
func ParseCapabilities(names []string) (Capabilities, error) {
	var set Capabilities
	for _, n := range names {
		c, err := ParseCapability(n)
		if err != nil {
			return 0, err
		}
		set |= Capabilities(c)
	}
	return set, nil
}

// Has reports whether c is enabled.
func (s Capabilities) Has(c Capability) bool {
	return s&Capabilities(c) != 0
}

// With returns the set with c enabled.
func (s Capabilities) With(c Capability) Capabilities {
	return s | Capabilities(c)
}

// Without returns the set with c disabled.
func (s Capabilities) Without(c Capability) Capabilities {
	return s &^ Capabilities(c)
}

// Len returns the number of enabled capabilities.
func (s Capabilities) Len() int {
	return bits.OnesCount8(uint8(s))
}

// Names returns the sorted wire names of the enabled capabilities.
func (s Capabilities) Names() []string {
	names := make([]string, 0, s.Len())
	for _, c := range AllCapabilities {
		if s.Has(c) {
			names = append(names, c.String())
		}
	}
	sort.Strings(names)
	return names
}

// String returns a comma-separated list of names.
func (s Capabilities) String() string {
	if s == 0 {
		return "none"
	}
	return strings.Join(s.Names(), ",")
}

// MarshalJSON encodes the set as a list of names.
func (s Capabilities) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

// UnmarshalJSON decodes a list of names.
func (s *Capabilities) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return fmt.Errorf("capabilities: %w", err)
	}
	set, err := ParseCapabilities(names)
	if err != nil {
		return err
	}
	*s = set
	return nil
}
