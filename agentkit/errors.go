// Copyright (c) Microsoft. All rights reserved.

package agentkit

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is.
var (
	// ErrTool is the base error for tool-related failures.
	ErrTool = errors.New("tool error")

	// ErrUnknownTool indicates a call named a tool that is not registered.
	ErrUnknownTool = fmt.Errorf("%w: unknown tool", ErrTool)

	// ErrInvalidArguments indicates the argument bundle did not match the
	// tool's declared parameters.
	ErrInvalidArguments = fmt.Errorf("%w: invalid arguments", ErrTool)

	// ErrToolExecution indicates a failure inside a tool callable.
	ErrToolExecution = fmt.Errorf("%w: execution", ErrTool)

	// ErrDuplicateTool is returned when registering a name twice.
	ErrDuplicateTool = fmt.Errorf("%w: duplicate name", ErrTool)

	// ErrInvalidTool is returned by the builder for malformed descriptors.
	ErrInvalidTool = fmt.Errorf("%w: invalid descriptor", ErrTool)

	// ErrSession is the base error for transcript failures.
	ErrSession = errors.New("session error")

	// ErrProtocolSequence indicates a turn was appended out of protocol order.
	ErrProtocolSequence = fmt.Errorf("%w: protocol sequence", ErrSession)

	// ErrSessionBusy is returned when a second round starts on a session
	// that is still processing one.
	ErrSessionBusy = fmt.Errorf("%w: round in progress", ErrProtocolSequence)

	// ErrDispatch is the base error for dispatcher failures.
	ErrDispatch = errors.New("dispatch error")

	// ErrToolLoopBudgetExceeded is returned when the model keeps requesting
	// tools past the configured round limit.
	ErrToolLoopBudgetExceeded = fmt.Errorf("%w: tool loop budget exceeded", ErrDispatch)

	// ErrBackend is the base error for model backend failures.
	ErrBackend = errors.New("backend error")

	// ErrBackendUnavailable indicates the backend could not be reached or
	// failed to produce a response.
	ErrBackendUnavailable = fmt.Errorf("%w: unavailable", ErrBackend)

	// ErrBackendTimeout indicates the backend did not answer in time.
	ErrBackendTimeout = fmt.Errorf("%w: timeout", ErrBackend)

	// ErrAuth indicates an authentication or authorization failure.
	ErrAuth = fmt.Errorf("%w: authentication", ErrBackendUnavailable)

	// ErrInvalidRequest indicates the backend rejected the request shape.
	ErrInvalidRequest = fmt.Errorf("%w: invalid request", ErrBackendUnavailable)

	// ErrInvalidResponse indicates the backend returned something unparseable.
	ErrInvalidResponse = fmt.Errorf("%w: invalid response", ErrBackendUnavailable)

	// ErrContentFilter indicates the request was rejected by a content filter.
	ErrContentFilter = fmt.Errorf("%w: content filter", ErrBackendUnavailable)

	// ErrCancelled indicates the caller abandoned the round.
	ErrCancelled = errors.New("cancelled")
)

// ErrorKind tags a failed [ToolResult]. The values are stable strings so they
// survive transcript export.
type ErrorKind string

const (
	KindUnknownTool      ErrorKind = "UnknownToolError"
	KindInvalidArguments ErrorKind = "InvalidArgumentsError"
	KindToolExecution    ErrorKind = "ToolExecutionError"
	KindCancelled        ErrorKind = "CancelledError"
)

// Err maps the kind back to its sentinel error.
func (k ErrorKind) Err() error {
	switch k {
	case KindUnknownTool:
		return ErrUnknownTool
	case KindInvalidArguments:
		return ErrInvalidArguments
	case KindToolExecution:
		return ErrToolExecution
	case KindCancelled:
		return ErrCancelled
	default:
		return nil
	}
}

// KindOf returns the error kind tag for err, or "" when err is nil.
// Unclassified errors are reported as execution failures.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCancelled):
		return KindCancelled
	case errors.Is(err, ErrUnknownTool):
		return KindUnknownTool
	case errors.Is(err, ErrInvalidArguments):
		return KindInvalidArguments
	default:
		return KindToolExecution
	}
}

// ServiceError provides rich context for backend service failures.
// Use errors.As to extract it from a wrapped error chain.
type ServiceError struct {
	StatusCode int
	Message    string
	Code       string
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("service error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("service error %d: %s", e.StatusCode, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// ToolError lets a tool report a failure with a message meant for the model.
type ToolError struct {
	ToolName string
	Message  string
	Err      error
}

func (e *ToolError) Error() string {
	if e.ToolName == "" {
		return e.Message
	}
	return fmt.Sprintf("tool %q: %s", e.ToolName, e.Message)
}

func (e *ToolError) Unwrap() error { return e.Err }

// NewServiceError builds a [ServiceError] whose sentinel follows the HTTP
// status: 401/403 map to [ErrAuth], 400/404/422 to [ErrInvalidRequest],
// 408/504 to [ErrBackendTimeout] and anything else to
// [ErrBackendUnavailable]. A "content_filter" code wins over the status.
func NewServiceError(status int, code, message string) *ServiceError {
	e := &ServiceError{StatusCode: status, Code: code, Message: message}
	switch {
	case code == "content_filter":
		e.Err = ErrContentFilter
	case status == 401 || status == 403:
		e.Err = ErrAuth
	case status == 400 || status == 404 || status == 422:
		e.Err = ErrInvalidRequest
	case status == 408 || status == 504:
		e.Err = ErrBackendTimeout
	default:
		e.Err = ErrBackendUnavailable
	}
	return e
}
