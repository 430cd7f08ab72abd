// Package errors defines the error kinds reported by the repository packages.
//
// Kinds are sentinel *Error values. Callers add context either with
// fmt.Errorf("...: %w", kind) or with kind.Wrap(cause), and match with Is.
package errors

import (
	stderr "errors"
)

var _ error = New("")

// Error kinds.
var (
	// ErrIntegrity reports a content key that does not match its value, or a
	// resolved element whose type differs from the link that points to it.
	ErrIntegrity = New("integrity violation")

	// ErrInvalidState reports an operation that is illegal in the current
	// repository state.
	ErrInvalidState = New("invalid state")

	// ErrNotFound reports a missing branch, commit or element.
	ErrNotFound = New("not found")

	// ErrCyclicLink reports a link mutation that would close a cycle.
	ErrCyclicLink = New("cyclic link")

	// ErrImmutable reports a mutation of a read-only object.
	ErrImmutable = New("read-only object")

	// ErrInvalidArgument reports a malformed call.
	ErrInvalidArgument = New("invalid argument")
)

// New error kind.
func New(msg string) *Error {
	return &Error{msg: msg}
}

// Error is an error kind, optionally carrying a nested cause.
type Error struct {
	msg  string
	err  error
	kind *Error
}

// Error message
func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

// Unwrap nested error
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// Wrap a nested error. The receiver is left untouched so sentinel kinds can be
// wrapped concurrently; the returned error still matches the kind with Is.
func (e *Error) Wrap(err error) *Error {
	kind := e
	if e.kind != nil {
		kind = e.kind
	}
	return &Error{msg: e.msg, err: err, kind: kind}
}

// Is of some error kind?
func (e *Error) Is(target error) bool {
	return e == target || (e.kind != nil && e.kind == target)
}

// As finds the first error in err's chain that matches target
// (a shortcut to standard lib errors.As)
func As(err error, target interface{}) bool {
	return stderr.As(err, target)
}

// Is reports whether any error in err's chain matches target
// (a shortcut to standard lib errors.Is)
func Is(err, target error) bool {
	return stderr.Is(err, target)
}
