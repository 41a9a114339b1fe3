// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"sync"
)

// Lease binds one stream to the session that was active when it started.
// It captures the session identity at bind time; later switches do not
// change what a lease points at.
type Lease struct {
	state      *State
	sessionID  string
	topic      string
	generation uint64

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// SessionID returns the id of the bound session.
func (l *Lease) SessionID() string {
	return l.sessionID
}

// Topic returns the topic of the bound session at bind time.
func (l *Lease) Topic() string {
	return l.topic
}

// Context returns the stream context. It is done when the lease is released,
// when its session is switched away from, or when the parent is cancelled.
func (l *Lease) Context() context.Context {
	return l.ctx
}

// Valid reports whether writes through the lease still reach the transcript.
func (l *Lease) Valid() bool {
	l.state.mu.Lock()
	defer l.state.mu.Unlock()
	return l.state.validLocked(l)
}

// Release cancels the lease context and detaches it from the state.
// Safe to call more than once.
func (l *Lease) Release() {
	l.once.Do(func() {
		l.cancel()
		l.state.release(l)
	})
}
