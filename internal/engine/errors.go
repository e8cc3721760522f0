package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/anchorkeep/internal/anchor"
)

// Error is a typed lifecycle error.
//
// Per-anchor failures (host, resolve) are never returned to callers. They are
// recorded on the record or resolution and logged with an Error attached.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Anchor identifies the affected record, if any.
	Anchor anchor.ID

	// CloudID identifies the affected cloud anchor, if any.
	CloudID string

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes lifecycle errors.
type ErrorCode string

const (
	// ErrCodePlacementRejected indicates a placement request was dropped.
	ErrCodePlacementRejected ErrorCode = "PLACEMENT_REJECTED"

	// ErrCodeHostFailed indicates a host operation ended unsuccessfully.
	ErrCodeHostFailed ErrorCode = "HOST_FAILED"

	// ErrCodeResolveFailed indicates a resolve operation ended unsuccessfully.
	ErrCodeResolveFailed ErrorCode = "RESOLVE_FAILED"

	// ErrCodeSessionNotReady indicates resolves are deferred until tracking.
	ErrCodeSessionNotReady ErrorCode = "SESSION_NOT_READY"

	// ErrCodeFatalSession indicates the AR session failed for good.
	ErrCodeFatalSession ErrorCode = "FATAL_SESSION"
)

// ErrNotNaming is returned by ConfirmName and CancelNaming when no record is
// awaiting a name.
var ErrNotNaming = errors.New("no anchor is awaiting a name")

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case e.Anchor != 0:
		msg = fmt.Sprintf("%s (anchor=%d)", msg, e.Anchor)
	case e.CloudID != "":
		msg = fmt.Sprintf("%s (cloud_id=%s)", msg, e.CloudID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsPlacementRejected returns true if the error is a rejected placement.
func IsPlacementRejected(err error) bool {
	return hasCode(err, ErrCodePlacementRejected)
}

// IsHostFailed returns true if the error is a failed host operation.
func IsHostFailed(err error) bool {
	return hasCode(err, ErrCodeHostFailed)
}

// IsResolveFailed returns true if the error is a failed resolve operation.
func IsResolveFailed(err error) bool {
	return hasCode(err, ErrCodeResolveFailed)
}

// IsSessionNotReady returns true if resolves were deferred.
func IsSessionNotReady(err error) bool {
	return hasCode(err, ErrCodeSessionNotReady)
}

// IsFatalSession returns true if the AR session has failed.
func IsFatalSession(err error) bool {
	return hasCode(err, ErrCodeFatalSession)
}

// NewPlacementRejected creates an Error for a dropped placement.
func NewPlacementRejected(reason string, cause error) *Error {
	return &Error{
		Code:    ErrCodePlacementRejected,
		Message: reason,
		Err:     cause,
	}
}

// NewHostFailed creates an Error for a failed host operation.
func NewHostFailed(id anchor.ID, reason string) *Error {
	return &Error{
		Code:    ErrCodeHostFailed,
		Message: reason,
		Anchor:  id,
	}
}

// NewResolveFailed creates an Error for a failed resolve operation.
func NewResolveFailed(cloudID, reason string) *Error {
	return &Error{
		Code:    ErrCodeResolveFailed,
		Message: reason,
		CloudID: cloudID,
	}
}

// NewSessionNotReady creates an Error for a deferred resolve request.
func NewSessionNotReady(status string) *Error {
	return &Error{
		Code:    ErrCodeSessionNotReady,
		Message: fmt.Sprintf("session status is %s", status),
	}
}

// NewFatalSession creates an Error for an unrecoverable session failure.
func NewFatalSession(message string) *Error {
	return &Error{
		Code:    ErrCodeFatalSession,
		Message: message,
	}
}
