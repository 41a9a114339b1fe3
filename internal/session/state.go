// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/insightdesk/internal/chart"
	"github.com/jeranaias/insightdesk/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNoActiveSession is returned when a stream is bound with no session.
	ErrNoActiveSession = errors.New("no active session")

	// ErrStaleLease is returned for writes from a stream whose session is no
	// longer active.
	ErrStaleLease = errors.New("session lease is stale")

	// ErrUnknownMessage is returned when a streaming message id is not found.
	ErrUnknownMessage = errors.New("message not found in session")
)

// =============================================================================
// STATE
// =============================================================================

// State tracks the active session and its transcript. Safe for concurrent
// use.
type State struct {
	mu sync.Mutex

	active     *model.Session
	generation uint64
	leases     map[*Lease]struct{}

	// PERFORMANCE: strings.Builder avoids quadratic allocations during streaming
	streaming map[string]*strings.Builder

	clock    func() time.Time
	onChange func()
}

// Option configures a State.
type Option func(*State)

// WithClock sets the time source used for message timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *State) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithOnChange registers a callback run after every transcript change.
// It is called without the lock held.
func WithOnChange(fn func()) Option {
	return func(s *State) {
		s.onChange = fn
	}
}

// NewState creates an empty State with no active session.
func NewState(opts ...Option) *State {
	s := &State{
		leases:    make(map[*Lease]struct{}),
		streaming: make(map[string]*strings.Builder),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the current time from the configured clock.
func (s *State) Now() time.Time {
	return s.clock()
}

// Activate makes sess the active session. Every lease bound to the previous
// session is cancelled. The state keeps its own copy of sess.
func (s *State) Activate(sess *model.Session) {
	s.mu.Lock()
	stale := s.invalidateLocked()
	s.active = sess.Clone()
	s.mu.Unlock()

	for _, l := range stale {
		l.cancel()
	}
	s.notify()
}

// Clear removes the active session, as after deleting it.
func (s *State) Clear() {
	s.Activate(nil)
}

// invalidateLocked bumps the generation and detaches every lease.
func (s *State) invalidateLocked() []*Lease {
	s.generation++
	stale := make([]*Lease, 0, len(s.leases))
	for l := range s.leases {
		stale = append(stale, l)
	}
	s.leases = make(map[*Lease]struct{})
	s.streaming = make(map[string]*strings.Builder)
	return stale
}

// Snapshot returns a copy of the active session, or nil if there is none.
func (s *State) Snapshot() *model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active.Clone()
}

// ActiveID returns the id of the active session, or "".
func (s *State) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return ""
	}
	return s.active.ID
}

// Topic returns the topic of the active session, or "".
func (s *State) Topic() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return ""
	}
	return s.active.Topic
}

// HistoryText returns the visible transcript text of the active session.
func (s *State) HistoryText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return ""
	}
	return s.active.HistoryText()
}

// Generation returns the activation counter. It changes on every Activate.
func (s *State) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// =============================================================================
// LEASED WRITES
// =============================================================================

// Bind creates a lease on the active session. The lease context is derived
// from ctx and is cancelled on Release or when the session is switched.
func (s *State) Bind(ctx context.Context) (*Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return nil, ErrNoActiveSession
	}

	lctx, cancel := context.WithCancel(ctx)
	l := &Lease{
		state:      s,
		sessionID:  s.active.ID,
		topic:      s.active.Topic,
		generation: s.generation,
		ctx:        lctx,
		cancel:     cancel,
	}
	s.leases[l] = struct{}{}
	return l, nil
}

// validLocked reports whether writes through l may touch the transcript.
func (s *State) validLocked(l *Lease) bool {
	if l == nil || s.active == nil {
		return false
	}
	if _, ok := s.leases[l]; !ok {
		return false
	}
	return l.generation == s.generation && l.sessionID == s.active.ID
}

// Append adds a complete message to the leased session.
func (s *State) Append(l *Lease, msg model.Message) error {
	s.mu.Lock()
	if !s.validLocked(l) {
		s.mu.Unlock()
		return ErrStaleLease
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.clock()
	}
	s.active.Messages = append(s.active.Messages, msg)
	s.active.UpdatedAt = s.clock()
	s.mu.Unlock()

	s.notify()
	return nil
}

// BeginAssistant appends an empty streaming assistant message and returns
// its id.
func (s *State) BeginAssistant(l *Lease) (string, error) {
	msg := model.NewAssistantMessage(s.clock())

	s.mu.Lock()
	if !s.validLocked(l) {
		s.mu.Unlock()
		return "", ErrStaleLease
	}
	s.active.Messages = append(s.active.Messages, msg)
	s.streaming[msg.ID] = &strings.Builder{}
	s.mu.Unlock()

	s.notify()
	return msg.ID, nil
}

// AppendContent appends delta to a streaming message and returns the
// accumulated content.
func (s *State) AppendContent(l *Lease, msgID, delta string) (string, error) {
	s.mu.Lock()
	if !s.validLocked(l) {
		s.mu.Unlock()
		return "", ErrStaleLease
	}
	b, ok := s.streaming[msgID]
	idx := s.indexLocked(msgID)
	if !ok || idx < 0 {
		s.mu.Unlock()
		return "", ErrUnknownMessage
	}
	b.WriteString(delta)
	content := b.String()
	s.active.Messages[idx].Content = content
	s.mu.Unlock()

	s.notify()
	return content, nil
}

// Finalize ends streaming for msgID. Chart markers are stripped from the
// stored content and the extracted charts are attached to the message.
func (s *State) Finalize(l *Lease, msgID string) (model.Message, error) {
	s.mu.Lock()
	if !s.validLocked(l) {
		s.mu.Unlock()
		return model.Message{}, ErrStaleLease
	}
	idx := s.indexLocked(msgID)
	if idx < 0 {
		s.mu.Unlock()
		return model.Message{}, ErrUnknownMessage
	}
	delete(s.streaming, msgID)

	msg := &s.active.Messages[idx]
	res := chart.Extract(msg.Content)
	msg.Content = res.Text
	msg.Charts = res.Charts
	msg.Streaming = false
	s.active.UpdatedAt = s.clock()
	out := *msg
	s.mu.Unlock()

	s.notify()
	return out, nil
}

// ReplaceMessages swaps the transcript of the active session, used when its
// messages are loaded from the backend. It is a no-op for other sessions.
func (s *State) ReplaceMessages(sessionID string, msgs []model.Message) bool {
	s.mu.Lock()
	if s.active == nil || s.active.ID != sessionID {
		s.mu.Unlock()
		return false
	}
	s.active.Messages = append([]model.Message(nil), msgs...)
	s.streaming = make(map[string]*strings.Builder)
	s.mu.Unlock()

	s.notify()
	return true
}

func (s *State) indexLocked(msgID string) int {
	for i := len(s.active.Messages) - 1; i >= 0; i-- {
		if s.active.Messages[i].ID == msgID {
			return i
		}
	}
	return -1
}

func (s *State) release(l *Lease) {
	s.mu.Lock()
	delete(s.leases, l)
	s.mu.Unlock()
}

func (s *State) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}
