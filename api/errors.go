// Package api
// Author: momentics <momentics@gmail.com>
//
// Error taxonomy shared by the adapter, the engine and the one-shot wait.

package api

import (
	"errors"
	"fmt"
)

// Kind classifies every failure surfaced by the library.
type Kind int

const (
	KindOK Kind = iota
	KindInvalidHandle
	KindInvalidParameter
	KindOutOfMemory
	KindNotFound
	KindAbandoned
	KindTimeout
	KindInterruptedByAlert
	KindNotSupported
	KindUnderlying
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindInvalidHandle:
		return "invalid handle"
	case KindInvalidParameter:
		return "invalid parameter"
	case KindOutOfMemory:
		return "out of memory"
	case KindNotFound:
		return "not found"
	case KindAbandoned:
		return "abandoned"
	case KindTimeout:
		return "timeout"
	case KindInterruptedByAlert:
		return "interrupted by alert"
	case KindNotSupported:
		return "not supported"
	case KindUnderlying:
		return "underlying platform failure"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Sentinels for errors.Is matching. Any *Error of the same Kind matches.
var (
	ErrInvalidHandle      = &Error{Kind: KindInvalidHandle}
	ErrInvalidParameter   = &Error{Kind: KindInvalidParameter}
	ErrOutOfMemory        = &Error{Kind: KindOutOfMemory}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrAbandoned          = &Error{Kind: KindAbandoned}
	ErrTimeout            = &Error{Kind: KindTimeout}
	ErrInterruptedByAlert = &Error{Kind: KindInterruptedByAlert}
	ErrNotSupported       = &Error{Kind: KindNotSupported}
)

// Error is a classified failure. Status carries the raw platform code when
// one exists, for diagnostics only.
type Error struct {
	Kind    Kind
	Op      string
	Status  uint32
	Err     error
	Context map[string]any
}

// NewError creates an error of the given kind for operation op.
func NewError(kind Kind, op string) *Error {
	return &Error{Kind: kind, Op: op}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status 0x%08X)", msg, e.Status)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if len(e.Context) != 0 {
		msg = fmt.Sprintf("%s (context: %+v)", msg, e.Context)
	}
	return msg
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithStatus records the raw platform status code.
func (e *Error) WithStatus(status uint32) *Error {
	e.Status = status
	return e
}

// Wrap attaches a cause.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

// KindOf extracts the Kind of err, KindOK for nil and KindUnderlying for
// errors not produced by this library.
func KindOf(err error) Kind {
	if err == nil {
		return KindOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnderlying
}

// IsInformational reports outcomes that are not failures: a wait that timed
// out or was interrupted to run an alert.
func IsInformational(err error) bool {
	switch KindOf(err) {
	case KindTimeout, KindInterruptedByAlert:
		return true
	}
	return false
}
