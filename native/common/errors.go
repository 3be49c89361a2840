package common

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why an operation was rejected so callers can react
// machine-readably. Every rejection aborts the whole operation; nothing
// no-ops silently.
type ErrorKind uint8

const (
	KindValidation ErrorKind = iota + 1
	KindAuthorization
	KindState
	KindEconomic
	KindTransfer
)

// String returns the canonical label for the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindState:
		return "state"
	case KindEconomic:
		return "economic"
	case KindTransfer:
		return "transfer"
	default:
		return "unknown"
	}
}

// Error carries a rejection reason together with its kind.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e == nil || e.Err == nil {
		return "operation rejected"
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Reject builds a kinded rejection with a module prefix.
func Reject(kind ErrorKind, module, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(module+": "+format, args...)}
}

// KindOf extracts the error kind from err, or zero when err is not a kinded
// rejection.
func KindOf(err error) ErrorKind {
	var rejection *Error
	if errors.As(err, &rejection) {
		return rejection.Kind
	}
	return 0
}
