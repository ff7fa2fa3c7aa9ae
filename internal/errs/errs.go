// Package errs defines the replay engine's error taxonomy (spec §7). Every
// error that can be attributed to a pipeline stage carries a Kind so the
// orchestrator can decide whether to recover locally or surface the error
// verbatim.
package errs

import "fmt"

// Kind names one row of the spec §7 error taxonomy.
type Kind string

const (
	BadAddress        Kind = "BadAddress"
	BadType           Kind = "BadType"
	BadDigest         Kind = "BadDigest"
	Fetch             Kind = "Fetch"
	MissingPackage    Kind = "MissingPackage"
	MissingObject     Kind = "MissingObject"
	LinkageCycle      Kind = "LinkageCycle"
	Abort             Kind = "Abort"
	ReconcileMismatch Kind = "ReconcileMismatch"
	Panic             Kind = "Panic"
)

// Error is the concrete error type produced by every package in this module.
// It wraps an optional cause with %w so errors.Is/errors.As keep working
// across package boundaries, the way the teacher's pkg/utils.Wrap does.
type Error struct {
	kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

func (e *Error) Unwrap() error { return e.err }

// Kind reports the taxonomy row this error belongs to.
func (e *Error) Kind() Kind { return e.kind }

// New builds a Kind-tagged error with no underlying cause.
func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches context and a Kind to an existing error. Returns nil if err
// is nil, matching pkg/utils.Wrap's contract in the teacher repo.
func Wrap(kind Kind, err error, msg string) *Error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, msg: msg, err: err}
}

// Wrapf is Wrap with formatting.
func Wrapf(kind Kind, err error, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...), err: err}
}

// Is reports whether err is an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if as(err, &e) {
		return e.kind == kind
	}
	return false
}

// as is a tiny local shim so this package doesn't need to import errors just
// for errors.As in the one place it's used.
func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
