package main

import (
	"errors"
	"fmt"
)

// LedgerError is an error that is safe and intended to be surfaced
// directly to a caller (an HTTP client, an RPC peer). Unlike generic
// errors, a LedgerError's message is guaranteed to be user-facing.
//
// Use Errorf when you want to return a specific, actionable message to
// the caller (a negative amount, an unknown sender, a bad signature).
// For internal failures that should not leak implementation detail
// (a database error, a filesystem error), return a plain wrapped error
// instead.
type LedgerError struct {
	err error
}

// Errorf creates a LedgerError with a formatted, client-safe message.
func Errorf(format string, args ...any) LedgerError {
	return LedgerError{err: fmt.Errorf(format, args...)}
}

// Error implements the error interface.
func (e LedgerError) Error() string {
	return e.err.Error()
}

// Unwrap allows errors.Is/errors.As to see through to the wrapped error.
func (e LedgerError) Unwrap() error {
	return e.err
}

// IsLedgerError reports whether err (or something it wraps) is a
// LedgerError, i.e. whether its message is safe to return to a caller.
func IsLedgerError(err error) bool {
	var le LedgerError
	return errors.As(err, &le)
}

// ErrNotFound is returned by store lookups (receipts) that find nothing.
var ErrNotFound = errors.New("ledger: not found")
