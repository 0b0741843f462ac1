// Package errs defines the error kinds shared by the matrix packages.
//
// Every error returned across a package boundary carries exactly one Kind so
// callers can branch with errors.Is against the sentinel values below.
package errs

import (
	"errors"
	"fmt"
)

type Kind uint8

const (
	Other Kind = iota
	InvalidArgument
	InvalidState
	NotFound
	Timeout
	Unsupported
	IOFailure
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid argument"
	case InvalidState:
		return "invalid state"
	case NotFound:
		return "not found"
	case Timeout:
		return "timeout"
	case Unsupported:
		return "unsupported"
	case IOFailure:
		return "io failure"
	default:
		return "other"
	}
}

// Sentinels for errors.Is.
var (
	ErrInvalidArgument = &Error{Kind: InvalidArgument}
	ErrInvalidState    = &Error{Kind: InvalidState}
	ErrNotFound        = &Error{Kind: NotFound}
	ErrTimeout         = &Error{Kind: Timeout}
	ErrUnsupported     = &Error{Kind: Unsupported}
	ErrIOFailure       = &Error{Kind: IOFailure}
)

// Error is a kinded error. Op names the failing operation, Err is the cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// E builds a kinded error with a formatted cause.
func E(kind Kind, op string, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches a kind to err. A nil err stays nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Other
}
