package models

import (
	"errors"
	"fmt"
)

// Kind groups failures by the stage that produced them.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindExtraction    Kind = "extraction"
	KindTemplate      Kind = "template"
	KindSync          Kind = "sync"
	KindProcess       Kind = "process"
	KindVerification  Kind = "verification"
	KindGeneration    Kind = "generation"
	KindBusy          Kind = "busy"
)

// FailureKind refines KindProcess.
type FailureKind string

const (
	FailureNone           FailureKind = ""
	FailureExitCode       FailureKind = "exit-code"
	FailureTimeout        FailureKind = "timeout"
	FailurePathPermission FailureKind = "path-permission"
	FailureUnexpected     FailureKind = "unexpected"
)

// Error is returned at component boundaries.
type Error struct {
	Kind    Kind
	Failure FailureKind
	Op      string
	Msg     string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Detail()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	return msg
}

// Detail is the human-readable message without the operation prefix.
func (e *Error) Detail() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind) + " error"
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds an Error of the given kind.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind around err.
func Wrap(kind Kind, op string, err error, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

// KindOf reports the Kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
