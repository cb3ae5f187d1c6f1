// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2024-2026 zerohunt contributors
// https://github.com/fr4nsys/zerohunt

// Package errors provides the application error type and the error taxonomy
// used across zerohunt. Every upstream failure is classified into exactly one
// code so the fetcher, dispatcher, and report agree on what is retryable,
// what kills a single signature, and what was operator-initiated.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error codes. These are stable strings that appear in logs and reports.
const (
	// CodeTransientUpstream marks a retryable upstream failure: rate limit,
	// 5xx, or a network timeout. Absorbed by the fetcher's retry loop.
	CodeTransientUpstream = "TRANSIENT_UPSTREAM"

	// CodeFatalUpstream marks a non-retryable upstream failure:
	// authentication, authorization, or a malformed filter. Also the
	// terminal re-classification of a transient failure once retries
	// are exhausted.
	CodeFatalUpstream = "FATAL_UPSTREAM"

	// CodeProtocolViolation marks an upstream pagination contract breach,
	// currently only a continuation cursor that points back to a cursor
	// already consumed in the same fetch.
	CodeProtocolViolation = "PROTOCOL_VIOLATION"

	// CodeInvalidSignature marks a signature definition rejected at
	// construction time (no indicators, port out of range).
	CodeInvalidSignature = "INVALID_SIGNATURE"

	// CodeCancelled marks work stopped by the caller's context.
	CodeCancelled = "CANCELLED"

	CodeNotFound   = "NOT_FOUND"
	CodeValidation = "VALIDATION_FAILED"
	CodeInternal   = "INTERNAL"
)

// Sentinel errors for errors.Is checks across package boundaries.
var (
	ErrTransientUpstream = errors.New("transient upstream failure")
	ErrFatalUpstream     = errors.New("fatal upstream failure")
	ErrProtocolViolation = errors.New("upstream protocol violation")
	ErrInvalidSignature  = errors.New("invalid signature definition")
	ErrCancelled         = errors.New("cancelled")
	ErrNotFound          = errors.New("not found")
)

// AppError is the application error carrying a taxonomy code, a
// human-readable message, optional structured details, and the wrapped cause.
type AppError struct {
	Code    string
	Message string
	Details map[string]interface{}
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error, if any.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is maps codes onto their sentinels so errors.Is(err, ErrFatalUpstream)
// works on any AppError regardless of how it was constructed.
func (e *AppError) Is(target error) bool {
	switch target {
	case ErrTransientUpstream:
		return e.Code == CodeTransientUpstream
	case ErrFatalUpstream:
		return e.Code == CodeFatalUpstream
	case ErrProtocolViolation:
		return e.Code == CodeProtocolViolation
	case ErrInvalidSignature:
		return e.Code == CodeInvalidSignature
	case ErrCancelled:
		return e.Code == CodeCancelled
	case ErrNotFound:
		return e.Code == CodeNotFound
	}
	return false
}

// New creates an AppError with a code and message.
func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Newf creates an AppError with a formatted message.
func Newf(code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an AppError wrapping an underlying cause.
func Wrap(err error, code, message string) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// Wrapf creates an AppError wrapping a cause with a formatted message.
func Wrapf(err error, code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// WithDetail attaches a single key/value to the error, initializing the
// details map if needed. Returns the receiver for chaining.
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithDetails merges a details map into the error.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{}, len(details))
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// ============================================================================
// Convenience constructors
// ============================================================================

// TransientUpstream builds a retryable upstream error from an HTTP status.
func TransientUpstream(status int, message string) *AppError {
	return New(CodeTransientUpstream, message).WithDetail("status", status)
}

// FatalUpstream builds a non-retryable upstream error from an HTTP status.
func FatalUpstream(status int, message string) *AppError {
	return New(CodeFatalUpstream, message).WithDetail("status", status)
}

// RetriesExhausted re-classifies a transient failure as fatal after the
// retry budget is spent. The original transient error stays in the chain.
func RetriesExhausted(err error, attempts int) *AppError {
	return Wrapf(err, CodeFatalUpstream, "retries exhausted after %d attempts", attempts)
}

// CursorLoop reports a continuation cursor seen twice within one fetch.
func CursorLoop(cursor string) *AppError {
	return Newf(CodeProtocolViolation, "cursor %q repeated; upstream pagination loop", cursor)
}

// InvalidSignature reports a signature rejected at construction.
func InvalidSignature(name, reason string) *AppError {
	return Newf(CodeInvalidSignature, "signature %q: %s", name, reason).
		WithDetail("signature", name)
}

// Cancelled reports caller-triggered cancellation.
func Cancelled(err error) *AppError {
	return Wrap(err, CodeCancelled, "hunt cancelled")
}

// NotFound reports a missing upstream resource.
func NotFound(resource string) *AppError {
	return Newf(CodeNotFound, "%s not found", resource)
}

// ============================================================================
// Classification
// ============================================================================

// ClassifyHTTPStatus maps an upstream HTTP status onto the error taxonomy.
// 429 and all 5xx are transient; everything else 4xx is fatal.
func ClassifyHTTPStatus(status int, message string) *AppError {
	if status == http.StatusTooManyRequests || status >= 500 {
		return TransientUpstream(status, message)
	}
	return FatalUpstream(status, message)
}

// IsTransient reports whether err is a retryable upstream failure.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientUpstream)
}

// IsFatalUpstream reports whether err is a non-retryable upstream failure.
func IsFatalUpstream(err error) bool {
	return errors.Is(err, ErrFatalUpstream)
}

// IsProtocolViolation reports whether err is a pagination contract breach.
func IsProtocolViolation(err error) bool {
	return errors.Is(err, ErrProtocolViolation)
}

// IsInvalidSignature reports whether err is a construction-time rejection.
func IsInvalidSignature(err error) bool {
	return errors.Is(err, ErrInvalidSignature)
}

// IsCancelled reports whether err was caused by caller cancellation,
// either through our own code or a raw context.Canceled. Deadline errors
// are not matched: an http.Client timeout satisfies
// errors.Is(err, context.DeadlineExceeded) yet is a transient upstream
// failure, and a caller deadline reaches us already wrapped as
// CodeCancelled by the request path.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

// IsNotFound reports whether err is a missing-resource error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// GetAppError extracts an *AppError from anywhere in the chain.
func GetAppError(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// Code returns the taxonomy code for err, or CodeInternal for plain errors.
func Code(err error) string {
	if ae, ok := GetAppError(err); ok {
		return ae.Code
	}
	return CodeInternal
}

// Is delegates to errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As delegates to errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
