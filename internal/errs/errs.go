// Package errs defines the error kinds surfaced by the solver, rebalancer
// and execution layer.
package errs

import (
	"errors"
)

type Kind string

const (
	KindValidation    Kind = "validation"
	KindChainRead     Kind = "chain_read"
	KindOrderMismatch Kind = "order_mismatch"
	KindExecution     Kind = "execution"
)

// Error carries a Kind, a caller-facing message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports malformed input, bad signatures or a wrong environment.
func Validation(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

// ChainRead reports that every configured endpoint failed for a read.
func ChainRead(msg string, err error) error {
	return &Error{Kind: KindChainRead, Message: msg, Err: err}
}

// OrderMismatch reports a field that differs between a submitted order and
// the on-chain record.
func OrderMismatch(field string) error {
	return &Error{Kind: KindOrderMismatch, Message: "Order " + field + " mismatch"}
}

// Execution reports a signing, broadcast or quote failure.
func Execution(msg string, err error) error {
	return &Error{Kind: KindExecution, Message: msg, Err: err}
}

// Is reports whether any error in err's chain has the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
