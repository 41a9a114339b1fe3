// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - JSON output for scripting.
//
// With --json every command writes exactly one JSONResponse to stdout.
// Progress and hints go to stderr.

package cli

import (
	"encoding/json"
	"io"
	"time"

	"github.com/jeranaias/insightdesk/internal/budget"
	"github.com/jeranaias/insightdesk/internal/chart"
	"github.com/jeranaias/insightdesk/internal/model"
	"github.com/jeranaias/insightdesk/internal/research"
)

// JSONResponse is the envelope of every JSON result.
type JSONResponse struct {
	Success bool `json:"success"`

	// Data is the command-specific payload
	Data any `json:"data"`

	// Error is the error message if Success is false, null otherwise
	Error     *string `json:"error"`
	ErrorType string  `json:"error_type,omitempty"`
	ExitCode  int     `json:"exit_code,omitempty"`

	// Timestamp is when the response was generated (RFC 3339, UTC)
	Timestamp string `json:"timestamp"`

	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a successful response.
func NewJSONResponse(command string, data any) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates an error response. data may carry partial
// results, such as the text received before a stream failed.
func NewJSONErrorResponse(command string, err error, data any) *JSONResponse {
	msg := err.Error()
	return &JSONResponse{
		Success:   false,
		Data:      data,
		Error:     &msg,
		ErrorType: errorType(err),
		ExitCode:  GetExitCode(err),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Write encodes the response as indented JSON.
func (r *JSONResponse) Write(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// writeJSON writes a success or error response for command and returns err.
func writeJSON(w io.Writer, command string, data any, err error) error {
	resp := NewJSONResponse(command, data)
	if err != nil {
		resp = NewJSONErrorResponse(command, err, data)
	}
	if werr := resp.Write(w); werr != nil && err == nil {
		return werr
	}
	if err != nil {
		return reported{err}
	}
	return nil
}

// reported marks an error whose details were already written as JSON.
type reported struct{ error }

func (r reported) Unwrap() error { return r.error }

// =============================================================================
// COMMAND-SPECIFIC DATA STRUCTURES
// =============================================================================

// AskData is the result of the ask command.
type AskData struct {
	SessionID     string        `json:"session_id"`
	Topic         string        `json:"topic"`
	Model         string        `json:"model"`
	Query         string        `json:"query"`
	Response      string        `json:"response"`
	Charts        []chart.Chart `json:"charts,omitempty"`
	DocumentCount int           `json:"document_count"`
	Plan          budget.Plan   `json:"plan"`
	DurationMs    int64         `json:"duration_ms"`
}

// ResearchData is the result of the research command.
type ResearchData struct {
	SessionID  string                 `json:"session_id"`
	Topic      string                 `json:"topic"`
	Query      string                 `json:"query"`
	Report     string                 `json:"report"`
	Charts     []chart.Chart          `json:"charts,omitempty"`
	Stages     []research.StageRecord `json:"stages"`
	DurationMs int64                  `json:"duration_ms"`
}

// SessionData is one entry of the sessions list.
type SessionData struct {
	ID           string    `json:"id"`
	Topic        string    `json:"topic"`
	Title        string    `json:"title"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
	MessageCount int       `json:"message_count,omitempty"`
}

// TranscriptData is the result of sessions show.
type TranscriptData struct {
	Session  SessionData     `json:"session"`
	Messages []model.Message `json:"messages"`
}

// BudgetData is the result of the budget command.
type BudgetData struct {
	Model string      `json:"model"`
	Plan  budget.Plan `json:"plan"`
	// Savings is the token saving against the unoptimised per-document cost
	Savings int `json:"savings"`
}

// ModelData is one entry of the models list.
type ModelData struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Provider      string `json:"provider"`
	ContextWindow int    `json:"context_window"`
	Current       bool   `json:"current,omitempty"`
}

// VersionData is the result of the version command.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}
