// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"fmt"

	"github.com/jeranaias/insightdesk/internal/chart"
	"github.com/jeranaias/insightdesk/internal/model"
)

// =============================================================================
// CONTROLLER STATE
// =============================================================================

// State is the lifecycle of a chat turn.
type State int32

const (
	StateIdle State = iota
	StateSending
	StateStreaming
	StateDone
	StateError
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrBusy is returned when a turn is already in flight.
	ErrBusy = errors.New("a chat turn is already in progress")

	// ErrNoTopic is returned when no topic is selected.
	ErrNoTopic = errors.New("no topic selected")

	// ErrNoModel is returned when no model is selected.
	ErrNoModel = errors.New("no model selected")

	// ErrNoSession is returned when there is no active session.
	ErrNoSession = errors.New("no active session")

	// ErrEmptyMessage is returned for a blank draft.
	ErrEmptyMessage = errors.New("message is empty")
)

// TurnError is an error reported by the backend inside the stream.
type TurnError struct {
	Message string
}

// Error implements the error interface.
func (e *TurnError) Error() string {
	return "assistant error: " + e.Message
}

// =============================================================================
// EVENTS
// =============================================================================

// EventKind identifies what an Event reports.
type EventKind int

const (
	// EventDelta carries new assistant text.
	EventDelta EventKind = iota

	// EventDone ends a turn that completed normally.
	EventDone

	// EventError ends a turn that failed.
	EventError
)

// String returns the kind name.
func (k EventKind) String() string {
	switch k {
	case EventDelta:
		return "delta"
	case EventDone:
		return "done"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one update of a chat turn for the renderer.
type Event struct {
	Kind EventKind

	// MessageID is the assistant message being streamed.
	MessageID string

	// Delta is the text appended by this event (EventDelta only).
	Delta string

	// Text is the accumulated assistant text with chart markers removed. On
	// EventDelta it stops short of a marker that has not closed yet.
	Text string

	// Charts extracted so far from the accumulated text.
	Charts []chart.Chart

	// Message is the final assistant message (EventDone) or the synthetic
	// error message (EventError), when one was recorded.
	Message model.Message

	// Err is set for EventError.
	Err error
}
