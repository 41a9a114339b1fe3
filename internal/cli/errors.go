// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types, display, and exit codes for insightdesk commands.
//
// Command handlers always return errors; the caller decides how to display
// them and which exit code to use.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/jeranaias/insightdesk/internal/assistant"
	"github.com/jeranaias/insightdesk/internal/backend"
	"github.com/jeranaias/insightdesk/internal/chat"
	"github.com/jeranaias/insightdesk/internal/config"
	"github.com/jeranaias/insightdesk/internal/research"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates a configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates the backend rejected our credentials
	ExitAuthError = 4
	// ExitNetworkError indicates the backend could not be reached
	ExitNetworkError = 5
	// ExitBackendError indicates the backend or the assistant reported a failure
	ExitBackendError = 6
	// ExitNotFoundError indicates a resource was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
	// ExitBusyError indicates a request was already in flight
	ExitBusyError = 9
	// ExitInterrupted is the conventional code for Ctrl+C
	ExitInterrupted = 130
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ValidationError represents invalid user input.
type ValidationError struct {
	Field   string
	Value   string
	Reason  string
	Example string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// NotFoundError represents a resource that does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// NewValidationError creates a new validation error.
func NewValidationError(field, value, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// NewValidationErrorWithExample creates a validation error with an example.
func NewValidationErrorWithExample(field, value, reason, example string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason, Example: example}
}

// ErrMissingArgument creates an error for a missing required argument.
func ErrMissingArgument(argName, usage string) error {
	return NewValidationErrorWithExample(argName, "", "required argument missing", usage)
}

// ErrNotFound creates a not found error.
func ErrNotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// =============================================================================
// ERROR DISPLAY
// =============================================================================

// DisplayError writes err to w. Errors already written as JSON are skipped;
// other errors in JSON mode are wrapped in a JSONResponse.
func DisplayError(w io.Writer, err error, jsonMode bool) {
	if err == nil {
		return
	}
	var done reported
	if errors.As(err, &done) {
		return
	}
	if jsonMode {
		NewJSONErrorResponse("", err, nil).Write(w)
		return
	}
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 500 {
		fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
		fmt.Fprintln(w, DimStyle.Render("The backend reported an internal error; try again shortly."))
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
}

func errorType(err error) string {
	switch GetExitCode(err) {
	case ExitUsageError:
		return "validation_error"
	case ExitConfigError:
		return "config_error"
	case ExitAuthError:
		return "auth_error"
	case ExitNetworkError:
		return "network_error"
	case ExitBackendError:
		return "backend_error"
	case ExitNotFoundError:
		return "not_found_error"
	case ExitTimeoutError:
		return "timeout_error"
	case ExitBusyError:
		return "busy_error"
	case ExitInterrupted:
		return "interrupted"
	default:
		return "generic_error"
	}
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// GetExitCode determines the exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var validationErr *ValidationError
	var notFoundErr *NotFoundError
	var configErrs config.ValidateErrors
	var configErr config.ValidationError
	var turnErr *chat.TurnError
	var jobErr *research.JobError
	var netErr net.Error

	switch {
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError

	case errors.As(err, &validationErr),
		errors.Is(err, assistant.ErrNoTopic),
		errors.Is(err, chat.ErrNoTopic),
		errors.Is(err, chat.ErrNoSession),
		errors.Is(err, research.ErrNoTopic),
		errors.Is(err, research.ErrNoSession),
		errors.Is(err, assistant.ErrInvalidSizing),
		errors.Is(err, assistant.ErrResearchDisabled),
		errors.Is(err, chat.ErrNoModel),
		errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, research.ErrEmptyQuery),
		errors.Is(err, backend.ErrInvalidArgument):
		return ExitUsageError

	case errors.As(err, &configErrs), errors.As(err, &configErr):
		return ExitConfigError

	case errors.As(err, &notFoundErr), errors.Is(err, backend.ErrNotFound):
		return ExitNotFoundError

	case errors.Is(err, backend.ErrUnauthorized):
		return ExitAuthError

	case errors.Is(err, assistant.ErrBusy),
		errors.Is(err, chat.ErrBusy),
		errors.Is(err, research.ErrBusy):
		return ExitBusyError

	case errors.As(err, &turnErr), errors.As(err, &jobErr),
		errors.Is(err, backend.ErrServer),
		errors.Is(err, backend.ErrBadRequest),
		errors.Is(err, backend.ErrRateLimited):
		return ExitBackendError

	case errors.As(err, &netErr):
		if netErr.Timeout() {
			return ExitTimeoutError
		}
		return ExitNetworkError
	}

	return ExitGeneralError
}
