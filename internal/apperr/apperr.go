package apperr

import (
	"errors"
	"fmt"
)

// Category classifies a failure so callers can decide between local recovery,
// retry, and user-visible reporting.
type Category string

const (
	// Unauthenticated means no valid session is present.
	Unauthenticated Category = "unauthenticated"
	// Unregistered means the session resolved to a public key with no user
	// record. Distinct from Unavailable: "you need to register" is not
	// "we could not check".
	Unregistered Category = "unregistered"
	// NotFound means the referenced entity does not exist.
	NotFound Category = "not_found"
	// Unauthorized means an ownership rule was violated.
	Unauthorized Category = "unauthorized"
	// InvalidInput means the request was rejected before any network call.
	InvalidInput Category = "invalid_input"
	// Unavailable means a transient backend failure; retry may be safe if
	// the operation is idempotent.
	Unavailable Category = "unavailable"
	// ChainFailed means the on-chain transfer was rejected or never
	// confirmed. No funds moved.
	ChainFailed Category = "chain_failed"
	// RecordFailed means the store write failed after the chain transfer
	// confirmed. Funds moved but the ledger is not updated; requires
	// explicit user remediation, never silent retry.
	RecordFailed Category = "record_failed"
)

// Error carries a category plus the operation that produced the failure.
type Error struct {
	Category Category
	Op       string
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Category)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Category, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a categorized error with a literal message.
func New(cat Category, op, msg string) error {
	return &Error{Category: cat, Op: op, Err: errors.New(msg)}
}

// Wrap annotates err with a category and the operation name.
func Wrap(cat Category, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Category: cat, Op: op, Err: err}
}

// CategoryOf extracts the category from err, walking the wrap chain.
// Uncategorized errors report Unavailable, the retry-eligibility default
// for "no response within a reasonable bound".
func CategoryOf(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return Unavailable
}

// Is reports whether err carries the given category.
func Is(err error, cat Category) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Category == cat
	}
	return false
}
