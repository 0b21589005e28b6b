// Package engerr provides a structured error interface used across the
// fingerprinting engine so that callers can decide how to present a failure
// without parsing error strings.
package engerr

import (
	"context"
	"errors"
	"strings"
)

// EngineError is the structured error interface returned by engine packages.
type EngineError interface {
	// Title is the canonical identifier for the error.
	// Must be short and concise, and not depend on context.
	// Should not produce styled output.
	Title() string
	// Error is the underlying error detail.
	// Should not produce styled output.
	Error() string
	// ShouldPrintUsage indicates whether the error should print usage
	// information for the offending command when this error occurs.
	ShouldPrintUsage() bool
}

var _ error = EngineError(nil)

type engineError struct {
	err error
}

// NewEngineError wraps a plain error as an EngineError.
// If err is already an EngineError it is returned unwrapped to avoid
// double-wrapping.
func NewEngineError(err error) EngineError {
	if err == nil {
		return nil
	}
	var ee EngineError
	if errors.As(err, &ee) {
		return ee
	}
	return &engineError{err: err}
}

func (e *engineError) Error() string {
	return e.err.Error()
}

func (e *engineError) Unwrap() error {
	return e.err
}

func (e *engineError) Title() string {
	return "Unknown Error"
}

func (e *engineError) ShouldPrintUsage() bool {
	return false
}

// PartialError marks an EngineError as carrying partial results alongside
// the failure, e.g. a scan that was interrupted after some targets matched.
type PartialError interface {
	EngineError
}

type partialError struct {
	err EngineError
}

// ToPartialError wraps an EngineError in a PartialError.
// If err is nil, it returns nil.
func ToPartialError(err EngineError) PartialError {
	if err == nil {
		return nil
	}
	return &partialError{err: err}
}

func (e *partialError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.err.Error())
	sb.WriteString("\n\npartial results were produced before this error occurred")
	return sb.String()
}

func (e *partialError) Title() string {
	return e.err.Title() + " (partial results)"
}

func (e *partialError) ShouldPrintUsage() bool {
	return e.err.ShouldPrintUsage()
}

func (e *partialError) Unwrap() error {
	return e.err
}

// NewUsageError creates an EngineError for command usage errors.
// This should be used for errors like invalid flags, missing arguments, etc.
// These errors will trigger usage information to be printed.
func NewUsageError(err error) EngineError {
	if err == nil {
		return nil
	}
	return &usageError{err: err}
}

type usageError struct {
	err error
}

func (e *usageError) Error() string {
	return e.err.Error()
}

func (e *usageError) Title() string {
	return "Usage Error"
}

func (e *usageError) ShouldPrintUsage() bool {
	return true
}

func (e *usageError) Unwrap() error {
	return e.err
}

// NewInterruptedError creates an EngineError for interrupted operations.
// This should be used exclusively for context.Canceled errors.
func NewInterruptedError() EngineError {
	return &interruptedError{}
}

type interruptedError struct{}

func (e *interruptedError) Error() string {
	return "the operation's context was cancelled before it completed"
}

func (e *interruptedError) Title() string {
	return "Interrupted"
}

func (e *interruptedError) ShouldPrintUsage() bool {
	return false
}

func (e *interruptedError) Unwrap() error {
	return context.Canceled
}

// NewDeadlineExceededError creates an EngineError for deadline exceeded errors.
// This should be used exclusively for context.DeadlineExceeded errors.
func NewDeadlineExceededError() EngineError {
	return &deadlineExceededError{}
}

type deadlineExceededError struct{}

func (e *deadlineExceededError) Error() string {
	return "the operation timed out before it could be completed"
}

func (e *deadlineExceededError) Title() string {
	return "Timeout"
}

func (e *deadlineExceededError) ShouldPrintUsage() bool {
	return false
}

func (e *deadlineExceededError) Unwrap() error {
	return context.DeadlineExceeded
}

// ParseContextError parses a context error into an EngineError.
// This should only be called on errors returned from ctx.Err().
func ParseContextError(err error) EngineError {
	switch {
	case errors.Is(err, context.Canceled):
		return NewInterruptedError()
	case errors.Is(err, context.DeadlineExceeded):
		return NewDeadlineExceededError()
	default:
		return NewEngineError(err)
	}
}

type unwrappableEngineError interface {
	EngineError
	Unwrap() error
}

// IsDeadlineExceeded checks if an error is due to a deadline exceeded error.
func IsDeadlineExceeded(err error) bool {
	if err == nil {
		return false
	}

	var domainError unwrappableEngineError
	if errors.As(err, &domainError) {
		return errors.Is(domainError.Unwrap(), context.DeadlineExceeded)
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsInterrupted checks if an error is due to interruption (signal or context cancellation).
func IsInterrupted(err error) bool {
	if err == nil {
		return false
	}
	var domainError unwrappableEngineError
	if errors.As(err, &domainError) {
		return errors.Is(domainError.Unwrap(), context.Canceled)
	}
	return errors.Is(err, context.Canceled)
}

// NewRegexError wraps a regex compilation failure encountered while compiling
// a matcher or extractor pattern in a template.
func NewRegexError(err error) EngineError {
	if err == nil {
		return nil
	}
	return &regexError{err: err}
}

type regexError struct {
	err error
}

func (e *regexError) Error() string {
	return "invalid regex pattern: " + e.err.Error()
}

func (e *regexError) Title() string {
	return "Invalid Pattern"
}

func (e *regexError) ShouldPrintUsage() bool {
	return false
}

func (e *regexError) Unwrap() error {
	return e.err
}
