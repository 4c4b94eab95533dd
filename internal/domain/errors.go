package domain

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failure independently of the engine version that produced it.
type Kind string

const (
	// KindInvalidArgument is a local schema or validation failure. It never reaches the engine.
	KindInvalidArgument Kind = "InvalidArgument"
	// KindNotFound means the engine reported a missing index or document.
	KindNotFound Kind = "NotFound"
	// KindConflict means a version or sequence-number mismatch on write.
	KindConflict Kind = "Conflict"
	// KindEngineUnavailable means the engine could not be reached or refused the connection.
	KindEngineUnavailable Kind = "EngineUnavailable"
	// KindTimeout means the operation deadline was exceeded.
	KindTimeout Kind = "Timeout"
	// KindInternal indicates an adapter/engine protocol mismatch.
	// It should not occur in a correctly assembled deployment.
	KindInternal Kind = "Internal"
)

// Error is the failure type carried across the capability boundary.
// Message is safe to show to an agent; Err keeps the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind, so that
// errors.Is(err, domain.ErrNotFound) works regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// Kind sentinels for errors.Is matching.
var (
	ErrInvalidArgument   = &Error{Kind: KindInvalidArgument}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrEngineUnavailable = &Error{Kind: KindEngineUnavailable}
	ErrTimeout           = &Error{Kind: KindTimeout}
	ErrInternal          = &Error{Kind: KindInternal}
)

// Errorf builds an *Error with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error that keeps cause for logging. The cause is not part of Message.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf extracts the failure kind from err. Context errors map to KindTimeout,
// anything unclassified maps to KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}
	return KindInternal
}

// AsError converts any error into an *Error, classifying it with KindOf when needed.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(KindTimeout, err, "operation deadline exceeded")
	case errors.Is(err, context.Canceled):
		return Wrap(KindTimeout, err, "operation cancelled before completion")
	default:
		return Wrap(KindInternal, err, "unexpected internal failure")
	}
}
