// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"encoding/json"
	"strings"
)

// =============================================================================
// FRAME TYPES
// =============================================================================

// Kind identifies what a decoded payload primarily carries.
type Kind int

const (
	// KindUnknown is a payload with no recognised field.
	KindUnknown Kind = iota
	KindContent
	KindError
	KindDone
	KindStage
	KindReportChunk
	KindFinalReport
)

// String returns a short name for the kind.
func (k Kind) String() string {
	switch k {
	case KindContent:
		return "content"
	case KindError:
		return "error"
	case KindDone:
		return "done"
	case KindStage:
		return "stage"
	case KindReportChunk:
		return "report_chunk"
	case KindFinalReport:
		return "final_report"
	default:
		return "unknown"
	}
}

// Payload is one decoded frame from the backend event stream.
// Every field is optional; research stage updates carry their auxiliary
// fields alongside Stage.
type Payload struct {
	Content      string          `json:"content,omitempty"`
	Error        ErrorField      `json:"error,omitempty"`
	Done         bool            `json:"done,omitempty"`
	Stage        string          `json:"stage,omitempty"`
	Status       string          `json:"status,omitempty"`
	Progress     *float64        `json:"progress,omitempty"`
	Objectives   json.RawMessage `json:"objectives,omitempty"`
	ResultsCount *int            `json:"results_count,omitempty"`
	Chunk        string          `json:"chunk,omitempty"`
	ReportChunk  string          `json:"report_chunk,omitempty"`
	FinalReport  *string         `json:"final_report,omitempty"`
}

// Kind reports the dominant field of the payload. Terminal fields win over
// incremental ones so a frame carrying both is never mistaken for a delta.
func (p Payload) Kind() Kind {
	switch {
	case p.Error.Set():
		return KindError
	case p.Done:
		return KindDone
	case p.FinalReport != nil:
		return KindFinalReport
	case p.Stage != "":
		return KindStage
	case p.Chunk != "" || p.ReportChunk != "":
		return KindReportChunk
	case p.Content != "":
		return KindContent
	default:
		return KindUnknown
	}
}

// ReportText returns the incremental report text of the frame, if any.
func (p Payload) ReportText() string {
	return p.Chunk + p.ReportChunk
}

// ObjectiveCount returns the number of research objectives in a stage frame.
// Objectives may arrive either as a list or as a bare count.
func (p Payload) ObjectiveCount() int {
	if len(p.Objectives) == 0 {
		return 0
	}
	var list []json.RawMessage
	if err := json.Unmarshal(p.Objectives, &list); err == nil {
		return len(list)
	}
	var n int
	if err := json.Unmarshal(p.Objectives, &n); err == nil && n > 0 {
		return n
	}
	return 0
}

// ErrorField holds the error text of a frame. Backends send either a plain
// string or an object with a "message" (or "detail") member.
type ErrorField struct {
	Message string
	present bool
}

// Set reports whether the frame carried an error member at all.
func (e ErrorField) Set() bool {
	return e.present
}

// String returns the error text, with a generic fallback for empty errors.
func (e ErrorField) String() string {
	if e.Message == "" && e.present {
		return "unknown error"
	}
	return e.Message
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *ErrorField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) || bytes.Equal(data, []byte("false")) {
		*e = ErrorField{}
		return nil
	}

	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*e = ErrorField{Message: strings.TrimSpace(text), present: true}
		return nil
	}

	var obj struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		// Anything else is still an error signal; keep the raw text.
		*e = ErrorField{Message: string(data), present: true}
		return nil
	}
	msg := obj.Message
	if msg == "" {
		msg = obj.Detail
	}
	*e = ErrorField{Message: msg, present: true}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (e ErrorField) MarshalJSON() ([]byte, error) {
	if !e.present {
		return []byte("null"), nil
	}
	return json.Marshal(e.Message)
}

// NewError returns an ErrorField carrying msg. Mostly useful in tests.
func NewError(msg string) ErrorField {
	return ErrorField{Message: msg, present: true}
}
