// Package apperr classifies failures so the HTTP layer can pick a status
// code without knowing which component failed.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the failure class of an error.
type Kind int

const (
	KindUnexpected Kind = iota
	KindValidation
	KindStore
	KindOracle
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindStore:
		return "store"
	case KindOracle:
		return "oracle"
	case KindTimeout:
		return "timeout"
	default:
		return "unexpected"
	}
}

// Error carries a Kind and the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E wraps err with kind and op. A nil err yields nil.
func E(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Validation builds a client-side error from a plain message.
func Validation(msg string) error {
	return &Error{Kind: KindValidation, Err: errors.New(msg)}
}

// KindOf reports the outermost Kind in err's chain, or KindUnexpected.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// Message returns the innermost message of a classified error, which is the
// text clients see for validation failures.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindValidation {
		return e.Err.Error()
	}
	return err.Error()
}
