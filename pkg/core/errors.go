package core

import (
	"errors"
	"fmt"
)

// Reason classifies a storage failure.
type Reason int

const (
	ReasonUnknown Reason = iota
	ReasonAccessDenied
	ReasonVersionConflict
	ReasonQuotaExceeded
	ReasonInvalidState
	ReasonBlocked
	ReasonUnavailable
)

var reasonNames = map[Reason]string{
	ReasonUnknown:         "unknown",
	ReasonAccessDenied:    "access denied",
	ReasonVersionConflict: "version conflict",
	ReasonQuotaExceeded:   "quota exceeded",
	ReasonInvalidState:    "invalid state",
	ReasonBlocked:         "blocked",
	ReasonUnavailable:     "unavailable",
}

var reasonHints = map[Reason]string{
	ReasonUnknown:         "unexpected storage failure",
	ReasonAccessDenied:    "the environment does not allow access to the database",
	ReasonVersionConflict: "the stored data was written by a newer version",
	ReasonQuotaExceeded:   "not enough storage space",
	ReasonInvalidState:    "the database is in an invalid state, reload and try again",
	ReasonBlocked:         "the database is in use by another process",
	ReasonUnavailable:     "no database is available in this environment",
}

// String returns the short name of the reason.
func (r Reason) String() string {
	if s, ok := reasonNames[r]; ok {
		return s
	}
	return fmt.Sprintf("reason(%d)", int(r))
}

// Hint returns a human-readable explanation suitable for end users.
func (r Reason) Hint() string {
	if s, ok := reasonHints[r]; ok {
		return s
	}
	return reasonHints[ReasonUnknown]
}

// StorageError is the single error kind surfaced by storage operations.
type StorageError struct {
	Op     string // e.g. "save", "load", "open"
	Key    string // empty for store-wide operations
	Reason Reason
	Err    error // native cause, may be nil
}

func (e *StorageError) Error() string {
	msg := "storage: " + e.Op
	if e.Key != "" {
		msg += " " + e.Key
	}
	msg += ": " + e.Reason.Hint()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is matches the reason sentinels below, so errors.Is(err, ErrQuotaExceeded) works.
func (e *StorageError) Is(target error) bool {
	t, ok := target.(*StorageError)
	if !ok {
		return false
	}
	return t.Op == "" && t.Key == "" && t.Err == nil && t.Reason == e.Reason
}

// Reason sentinels for errors.Is.
var (
	ErrUnknown         = &StorageError{Reason: ReasonUnknown}
	ErrAccessDenied    = &StorageError{Reason: ReasonAccessDenied}
	ErrVersionConflict = &StorageError{Reason: ReasonVersionConflict}
	ErrQuotaExceeded   = &StorageError{Reason: ReasonQuotaExceeded}
	ErrInvalidState    = &StorageError{Reason: ReasonInvalidState}
	ErrBlocked         = &StorageError{Reason: ReasonBlocked}
	ErrUnavailable     = &StorageError{Reason: ReasonUnavailable}
)

// Common errors.
var (
	ErrNotFound = errors.New("record not found")
	ErrEmptyKey = errors.New("key cannot be empty")
	ErrReadOnly = errors.New("store is in read-only mode")
	ErrClosed   = errors.New("store is closed")
)

// NewError builds a StorageError.
func NewError(op, key string, reason Reason, err error) *StorageError {
	return &StorageError{Op: op, Key: key, Reason: reason, Err: err}
}

// ReasonOf extracts the Reason of err. Errors that are not storage errors
// report ReasonUnknown.
func ReasonOf(err error) Reason {
	var se *StorageError
	if errors.As(err, &se) {
		return se.Reason
	}
	return ReasonUnknown
}

// wrapError attaches op and key to err, preserving an existing reason.
// ErrReadOnly and ErrClosed are classified here so backends may return them bare.
func wrapError(op, key string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		// copy: se may be one of the package sentinels
		out := *se
		if out.Op == "" {
			out.Op = op
		}
		if out.Key == "" {
			out.Key = key
		}
		return &out
	}
	switch {
	case errors.Is(err, ErrReadOnly):
		return NewError(op, key, ReasonAccessDenied, err)
	case errors.Is(err, ErrClosed):
		return NewError(op, key, ReasonInvalidState, err)
	}
	return NewError(op, key, ReasonUnknown, err)
}
